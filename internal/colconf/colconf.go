// Package colconf reads the JSON-encoded deck and model registries stored
// in the collection's single configuration row.
package colconf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Column names in the configuration table.
const (
	DecksColumn  = "decks"
	ModelsColumn = "models"
)

// ErrNotFound is returned by FindIDByName when no entry has the given name.
var ErrNotFound = errors.New("name not found")

// Entry is the part of a deck or model definition this package reads.
// Other keys in the stored JSON are ignored.
type Entry struct {
	Name string `json:"name"`
}

// Mapping is a decoded registry keyed by the stringified numeric id.
type Mapping map[string]Entry

// ColumnReader returns the raw JSON held in one configuration column.
type ColumnReader interface {
	ConfigColumn(ctx context.Context, column string) ([]byte, error)
}

// Decode parses a registry blob.
func Decode(raw []byte) (Mapping, error) {
	var m Mapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return m, nil
}

// LoadDecks reads and decodes the decks registry.
func LoadDecks(ctx context.Context, r ColumnReader) (Mapping, error) {
	return load(ctx, r, DecksColumn)
}

// LoadModels reads and decodes the models registry.
func LoadModels(ctx context.Context, r ColumnReader) (Mapping, error) {
	return load(ctx, r, ModelsColumn)
}

func load(ctx context.Context, r ColumnReader, column string) (Mapping, error) {
	raw, err := r.ConfigColumn(ctx, column)
	if err != nil {
		return nil, err
	}
	m, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", column, err)
	}
	return m, nil
}

// FindIDByName returns the id of the entry whose name equals name exactly.
// When several entries share a name the one with the smallest id wins.
func FindIDByName(m Mapping, name string) (int64, error) {
	ids := make([]int64, 0, len(m))
	for key, entry := range m {
		if entry.Name != name {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("entry %q has non-numeric id %q: %w", name, key, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0], nil
}

package ident

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// guidAlphabet is the 91 character table the host application uses for
// note guids: ASCII letters (lowercase first), digits, then punctuation.
const guidAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!#$%&()*+,-./:;<=>?@[]^_`{|}~"

// LegacyChecksumInput is the literal string older versions of this tool
// checksummed instead of the sort field.
const LegacyChecksumInput = "flds[0]"

// ErrEmptyTable is returned when a max-id query runs against a table with no rows.
var ErrEmptyTable = errors.New("table has no existing rows")

// Source64 supplies uniformly distributed 64-bit values.
type Source64 interface {
	Uint64() uint64
}

type globalSource struct{}

func (globalSource) Uint64() uint64 { return rand.Uint64() }

// NewGUID returns a random note guid.
func NewGUID() string {
	return NewGUIDFrom(globalSource{})
}

// NewGUIDFrom draws one value from src and encodes it with EncodeBase91.
func NewGUIDFrom(src Source64) string {
	return EncodeBase91(src.Uint64())
}

// EncodeBase91 encodes n most significant digit first with no padding.
// Zero encodes to the empty string, matching the host application.
func EncodeBase91(n uint64) string {
	var buf [11]byte // 91^10 < 2^64 <= 91^11
	i := len(buf)
	base := uint64(len(guidAlphabet))
	for n > 0 {
		i--
		buf[i] = guidAlphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// FieldChecksum returns the first 8 hex digits of the SHA-1 of text as a
// 32-bit unsigned integer.
func FieldChecksum(text string) uint32 {
	sum := sha1.Sum([]byte(text))
	return binary.BigEndian.Uint32(sum[:4])
}

// Table names a table whose primary key is allocated by this package.
type Table string

const (
	Notes Table = "notes"
	Cards Table = "cards"
)

// MaxIDSource reports the largest id currently stored in a table, or
// ErrEmptyTable when the table has no rows.
type MaxIDSource interface {
	MaxID(ctx context.Context, table Table) (int64, error)
}

// IDAllocator hands out new primary keys. Backends that autoincrement can
// satisfy it without a max-id query.
type IDAllocator interface {
	NextID(ctx context.Context, table Table) (int64, error)
}

// Allocator implements IDAllocator on top of a max-id query. An empty
// table is seeded with the current time in milliseconds, which is how the
// host application assigns ids itself.
type Allocator struct {
	src MaxIDSource
	now func() time.Time
}

// NewAllocator returns an Allocator reading from src. A nil now uses time.Now.
func NewAllocator(src MaxIDSource, now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{src: src, now: now}
}

// NextID returns an id strictly greater than every id in table.
func (a *Allocator) NextID(ctx context.Context, table Table) (int64, error) {
	maxID, err := a.src.MaxID(ctx, table)
	if errors.Is(err, ErrEmptyTable) {
		return a.now().UnixMilli(), nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", table, err)
	}
	return maxID + 1, nil
}

// Package collection adds notes and their cards to a collection database.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/ankicol/internal/colconf"
	"github.com/conorfennell/ankicol/internal/domain"
	"github.com/conorfennell/ankicol/internal/ident"
	"github.com/conorfennell/ankicol/internal/media"
	"github.com/conorfennell/ankicol/internal/storage"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrUnknownDeck  = errors.New("unknown deck")
	ErrTransaction  = errors.New("transaction failed")
)

// DefaultOrdinals renders a forward and a reversed card for each note.
var DefaultOrdinals = []int{0, 1}

// Options configures a Writer. Zero values select the defaults.
type Options struct {
	MediaDir    string
	MediaPrefix string
	MediaExt    string
	// Ordinals lists the template ordinals that get a card per note.
	Ordinals []int
	// LegacyChecksum reproduces the checksum older versions of this tool
	// stored, which ignores the note content.
	LegacyChecksum bool
	Now            func() time.Time
	Logger         *slog.Logger
}

// Writer inserts notes into one open collection. It is not safe for
// concurrent use; callers own the connection for the whole session.
type Writer struct {
	db   *storage.DB
	opts Options
	log  *slog.Logger
}

// Added describes the rows and file produced by one AddCard call.
type Added struct {
	NoteID    int64
	CardIDs   []int64
	MediaFile string
}

// NewWriter returns a Writer for db.
func NewWriter(db *storage.DB, opts Options) (*Writer, error) {
	if len(opts.Ordinals) == 0 {
		opts.Ordinals = DefaultOrdinals
	}
	seen := make(map[int]bool, len(opts.Ordinals))
	for _, ord := range opts.Ordinals {
		if ord < 0 || seen[ord] {
			return nil, fmt.Errorf("invalid ordinal set %v", opts.Ordinals)
		}
		seen[ord] = true
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.LegacyChecksum {
		log.Warn("legacy checksum enabled; duplicate detection will not see new notes")
	}
	return &Writer{db: db, opts: opts, log: log}, nil
}

// AddCard inserts one note and a card per configured ordinal, filed under
// deckName and rendered with modelName.
//
// Names are resolved before anything is written. A sound payload is then
// written to the media folder, and the rows are inserted in a single
// transaction that is rolled back on any failure. A failure after the media
// write leaves the file behind; it is not removed because an earlier note
// with the same front may use it.
func (w *Writer) AddCard(ctx context.Context, content domain.Content, modelName, deckName string) (*Added, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	defer tx.Rollback()

	modelID, deckID, err := resolve(ctx, tx, modelName, deckName)
	if err != nil {
		return nil, err
	}

	added := &Added{}
	soundRef := ""
	if len(content.Sound) > 0 {
		name := media.FileName(w.opts.MediaPrefix, content.Front, w.opts.MediaExt)
		path, err := media.Write(w.opts.MediaDir, name, content.Sound)
		if err != nil {
			return nil, err
		}
		added.MediaFile = path
		soundRef = media.SoundRef(name)
	}

	if err := w.insert(ctx, tx, content, soundRef, modelID, deckID, added); err != nil {
		w.warnOrphan(added.MediaFile, err)
		return nil, fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	if err := tx.Commit(); err != nil {
		w.warnOrphan(added.MediaFile, err)
		return nil, fmt.Errorf("%w: commit: %w", ErrTransaction, err)
	}

	w.log.Info("note added",
		"note_id", added.NoteID,
		"card_ids", added.CardIDs,
		"model_id", modelID,
		"deck_id", deckID,
		"media", added.MediaFile,
	)
	return added, nil
}

func (w *Writer) insert(ctx context.Context, tx *storage.Tx, content domain.Content, soundRef string, modelID, deckID int64, added *Added) error {
	alloc := ident.NewAllocator(tx, w.opts.Now)
	mod := w.opts.Now().Unix()

	noteID, err := alloc.NextID(ctx, ident.Notes)
	if err != nil {
		return err
	}
	note := domain.Note{
		ID:       noteID,
		GUID:     ident.NewGUID(),
		ModelID:  modelID,
		Mod:      mod,
		USN:      -1,
		Tags:     domain.FormatTags(content.Tags),
		Fields:   domain.JoinFields(content.Fields(soundRef)),
		SortFld:  content.Front,
		Checksum: w.checksum(content.Front),
	}
	if err := tx.InsertNote(ctx, note); err != nil {
		return err
	}
	added.NoteID = noteID

	for _, ord := range w.opts.Ordinals {
		cardID, err := alloc.NextID(ctx, ident.Cards)
		if err != nil {
			return err
		}
		due, err := tx.NextDue(ctx)
		if err != nil {
			return err
		}
		card := domain.Card{
			ID:      cardID,
			NoteID:  noteID,
			DeckID:  deckID,
			Ordinal: ord,
			Mod:     mod,
			USN:     -1,
			Due:     due,
		}
		if err := tx.InsertCard(ctx, card); err != nil {
			return err
		}
		added.CardIDs = append(added.CardIDs, cardID)
	}
	return nil
}

// Exists reports whether a note with the same front already exists for
// modelName.
func (w *Writer) Exists(ctx context.Context, content domain.Content, modelName string) (bool, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	defer tx.Rollback()

	models, err := colconf.LoadModels(ctx, tx)
	if err != nil {
		return false, err
	}
	modelID, err := colconf.FindIDByName(models, modelName)
	if err != nil {
		return false, lookupErr(ErrUnknownModel, err)
	}
	return tx.NoteExists(ctx, modelID, w.checksum(content.Front), content.Front)
}

func (w *Writer) checksum(sortField string) uint32 {
	if w.opts.LegacyChecksum {
		return ident.FieldChecksum(ident.LegacyChecksumInput)
	}
	return ident.FieldChecksum(sortField)
}

func (w *Writer) warnOrphan(path string, cause error) {
	if path == "" {
		return
	}
	w.log.Warn("rows rolled back after media write; file may be orphaned",
		"path", path,
		"error", cause,
	)
}

func resolve(ctx context.Context, r colconf.ColumnReader, modelName, deckName string) (modelID, deckID int64, err error) {
	models, err := colconf.LoadModels(ctx, r)
	if err != nil {
		return 0, 0, err
	}
	modelID, err = colconf.FindIDByName(models, modelName)
	if err != nil {
		return 0, 0, lookupErr(ErrUnknownModel, err)
	}

	decks, err := colconf.LoadDecks(ctx, r)
	if err != nil {
		return 0, 0, err
	}
	deckID, err = colconf.FindIDByName(decks, deckName)
	if err != nil {
		return 0, 0, lookupErr(ErrUnknownDeck, err)
	}
	return modelID, deckID, nil
}

func lookupErr(kind, err error) error {
	if errors.Is(err, colconf.ErrNotFound) {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}

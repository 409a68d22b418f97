package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/conorfennell/ankicol/internal/collection"
	"github.com/conorfennell/ankicol/internal/domain"
	"github.com/conorfennell/ankicol/internal/ident"
	"github.com/conorfennell/ankicol/internal/storage"
)

type fakeAdder struct {
	existing map[string]bool
	failOn   string
	added    []domain.Content
}

func (f *fakeAdder) AddCard(_ context.Context, c domain.Content, _, _ string) (*collection.Added, error) {
	if c.Front == f.failOn {
		return nil, errors.New("boom")
	}
	f.added = append(f.added, c)
	return &collection.Added{}, nil
}

func (f *fakeAdder) Exists(_ context.Context, c domain.Content, _ string) (bool, error) {
	return f.existing[c.Front], nil
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRun(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.md":              "Q: one\nA: 1\n\nQ: two\nA: 2\n",
		"nested/b.txt":      "Q: three\nA: 3\n",
		"ignored.go":        "Q: not a card file\n",
		".git/config.md":    "Q: inside git dir\n",
		"nested/failing.md": "Q: bad\nA: x\n",
	})
	adder := &fakeAdder{failOn: "bad"}

	report, err := Run(context.Background(), adder, dir, Options{Model: "Basic", Deck: "Test", Logger: quiet})
	if err != nil {
		t.Fatalf("Run() returned an unexpected error: %v", err)
	}
	if report.Files != 3 {
		t.Errorf("Expected 3 card files, but got %d", report.Files)
	}
	if report.Parsed != 4 {
		t.Errorf("Expected 4 parsed cards, but got %d", report.Parsed)
	}
	if report.Added != 3 || len(adder.added) != 3 {
		t.Errorf("Expected 3 added cards, but got %d", report.Added)
	}
	if len(report.Errors) != 1 {
		t.Errorf("Expected 1 error, but got %v", report.Errors)
	}
}

func TestRunSkipDuplicates(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.md": "Q: one\nA: 1\n---\nQ: two\nA: 2\n"})
	adder := &fakeAdder{existing: map[string]bool{"one": true}}

	report, err := Run(context.Background(), adder, dir, Options{SkipDuplicates: true, Logger: quiet})
	if err != nil {
		t.Fatalf("Run() returned an unexpected error: %v", err)
	}
	if report.Skipped != 1 || report.Added != 1 {
		t.Errorf("Expected 1 skipped and 1 added, but got %d and %d", report.Skipped, report.Added)
	}
}

func TestRunMissingDirectory(t *testing.T) {
	_, err := Run(context.Background(), &fakeAdder{}, filepath.Join(t.TempDir(), "missing"), Options{Logger: quiet})
	if err == nil {
		t.Error("Expected an error for a missing directory, but got nil")
	}
}

func TestRunIntoCollection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "collection.anki2")
	if err := storage.CreateCollection(ctx, path, `{"1": {"name": "Test"}}`, `{"2": {"name": "Basic"}}`); err != nil {
		t.Fatal(err)
	}
	db, err := storage.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	w, err := collection.NewWriter(db, collection.Options{Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}

	dir := writeFiles(t, map[string]string{"a.md": "Q: one\nA: 1\nT: x\n---\nQ: two\nA: 2\n---\nQ: one\nA: again\n"})
	report, err := Run(ctx, w, dir, Options{Model: "Basic", Deck: "Test", SkipDuplicates: true, Logger: quiet})
	if err != nil {
		t.Fatalf("Run() returned an unexpected error: %v", err)
	}
	if report.Added != 2 || report.Skipped != 1 {
		t.Errorf("Expected 2 added and 1 skipped, but got %d and %d (errors: %v)", report.Added, report.Skipped, report.Errors)
	}

	notes, _ := db.Count(ctx, ident.Notes)
	cards, _ := db.Count(ctx, ident.Cards)
	if notes != 2 || cards != 4 {
		t.Errorf("Expected 2 notes and 4 cards, but got %d and %d", notes, cards)
	}
}

// Package importer adds every card found in a directory of card files,
// or in a git repository of them, over one open collection.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/ankicol/internal/collection"
	"github.com/conorfennell/ankicol/internal/domain"
	"github.com/conorfennell/ankicol/internal/gitsource"
	"github.com/conorfennell/ankicol/internal/parser"
)

// Adder is the part of collection.Writer the importer needs.
type Adder interface {
	AddCard(ctx context.Context, content domain.Content, modelName, deckName string) (*collection.Added, error)
	Exists(ctx context.Context, content domain.Content, modelName string) (bool, error)
}

// Options selects the target model and deck.
type Options struct {
	Model          string
	Deck           string
	SkipDuplicates bool
	// ReposDir holds working copies of remote sources. Defaults to "repos".
	ReposDir string
	Logger   *slog.Logger
}

// Report summarises one import run.
type Report struct {
	Files   int
	Parsed  int
	Added   int
	Skipped int
	Errors  []error
}

// Run imports all cards under source. Per-card failures are collected in
// the report and do not stop the run; cards added before a failure stay
// committed. An error is returned only when the source cannot be read.
func Run(ctx context.Context, w Adder, source string, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	dir := source
	if gitsource.IsRemote(source) {
		reposDir := opts.ReposDir
		if reposDir == "" {
			reposDir = "repos"
		}
		localPath, err := gitsource.LocalPath(reposDir, source)
		if err != nil {
			return nil, err
		}
		if err := gitsource.Sync(ctx, source, localPath); err != nil {
			return nil, err
		}
		dir = localPath
	}

	report := &Report{}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isCardFile(d.Name()) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		report.Files++
		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, card := range cards {
			report.Parsed++
			importCard(ctx, w, card, path, opts, report, log)
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	log.Info("import complete",
		"source", source,
		"files", report.Files,
		"parsed_cards", report.Parsed,
		"added", report.Added,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func importCard(ctx context.Context, w Adder, card domain.Content, path string, opts Options, report *Report, log *slog.Logger) {
	if opts.SkipDuplicates {
		exists, err := w.Exists(ctx, card, opts.Model)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s: duplicate check for %q: %w", path, card.Front, err))
			return
		}
		if exists {
			log.Debug("duplicate card, skipping", "front", card.Front, "file", path)
			report.Skipped++
			return
		}
	}

	if _, err := w.AddCard(ctx, card, opts.Model, opts.Deck); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("%s: adding %q: %w", path, card.Front, err))
		return
	}
	report.Added++
}

func isCardFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".txt")
}

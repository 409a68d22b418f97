package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"

	"github.com/conorfennell/ankicol/internal/collection"
	"github.com/conorfennell/ankicol/internal/config"
	"github.com/conorfennell/ankicol/internal/domain"
	"github.com/conorfennell/ankicol/internal/importer"
	"github.com/conorfennell/ankicol/internal/storage"
)

const usage = `Usage: ankicol [options] --front <text> [--back <text>] [--sound <file>] [--tag <tag>]...
       ankicol [options] --import <dir|git-url>

Adds notes directly to a collection database. The collection must not be
open in another program while this runs.

Options:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("ankicol", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprint(errOut, usage)
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	front := fs.String("front", "", "Front text of the card")
	back := fs.String("back", "", "Back text of the card")
	soundPath := fs.String("sound", "", "Audio file to attach to the card")
	tags := fs.StringArray("tag", nil, "Tag (repeatable)")
	source := fs.String("import", "", "Directory or git URL of card files to import")
	reposDir := fs.String("repos-dir", "repos", "Where remote import sources are cloned")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}
	logger := newLogger(errOut, cfg.LogLevel)

	if (*front == "") == (*source == "") {
		fmt.Fprintln(errOut, "error: exactly one of --front or --import is required")
		fs.Usage()
		return 2
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to open collection", "path", cfg.Database, "error", err)
		return 1
	}
	defer db.Close()

	writer, err := collection.NewWriter(db, collection.Options{
		MediaDir:       cfg.MediaDir,
		MediaPrefix:    cfg.MediaPrefix,
		MediaExt:       cfg.MediaExt,
		Ordinals:       cfg.Ordinals,
		LegacyChecksum: cfg.LegacyChecksum,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("invalid writer options", "error", err)
		return 2
	}

	if *source != "" {
		report, err := importer.Run(ctx, writer, *source, importer.Options{
			Model:          cfg.Model,
			Deck:           cfg.Deck,
			SkipDuplicates: cfg.SkipDuplicates,
			ReposDir:       *reposDir,
			Logger:         logger,
		})
		if err != nil {
			logger.Error("import failed", "source", *source, "error", err)
			return 1
		}
		fmt.Fprintf(out, "Added %d cards, skipped %d, %d errors.\n", report.Added, report.Skipped, len(report.Errors))
		for _, e := range report.Errors {
			fmt.Fprintf(out, "- %s\n", e)
		}
		if len(report.Errors) > 0 {
			return 1
		}
		return 0
	}

	content := domain.Content{Front: *front, Back: *back, Tags: *tags}
	if *soundPath != "" {
		content.Sound, err = os.ReadFile(*soundPath)
		if err != nil {
			logger.Error("failed to read sound file", "path", *soundPath, "error", err)
			return 1
		}
	}

	if cfg.SkipDuplicates {
		exists, err := writer.Exists(ctx, content, cfg.Model)
		if err != nil {
			logger.Error("duplicate check failed", "error", err)
			return 1
		}
		if exists {
			fmt.Fprintf(out, "Skipped duplicate %q.\n", content.Front)
			return 0
		}
	}

	added, err := writer.AddCard(ctx, content, cfg.Model, cfg.Deck)
	if err != nil {
		logger.Error("failed to add card", "error", err)
		return 1
	}
	fmt.Fprintf(out, "Added note %d with %d cards.\n", added.NoteID, len(added.CardIDs))
	return 0
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

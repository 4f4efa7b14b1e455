package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/vedran77/tandem/internal/config"
	"github.com/vedran77/tandem/internal/database"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository/document"
	"github.com/vedran77/tandem/internal/service"
)

const Version = "0.1.0"

const usage = `Tandem operator tool.

Opens the store selected by STORE_BACKEND (see .env).

Usage:
    tandemctl migrate
    tandemctl backfill-usernames
    tandemctl reconcile [<account_id>...]
    tandemctl -h | --help
    tandemctl --version

Options:
    -h --help    Show this screen.
    --version    Show version.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.NewJSON(os.Stderr, slog.LevelInfo)
	ctx := context.Background()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Opening the store applies migrations or indexes, which is all
	// migrate needs.
	store, closeStore, err := database.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = execute(ctx, opts, store, logger, os.Stdout)
	closeStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts docopt.Opts, store docstore.Store, logger logging.Logger, out io.Writer) error {
	repos := document.NewManager()

	if migrate, _ := opts.Bool("migrate"); migrate {
		fmt.Fprintln(out, "store is up to date")
		return nil
	}

	if backfill, _ := opts.Bool("backfill-usernames"); backfill {
		n, err := service.NewProfileService(store, repos, logger).BackfillUsernameLowercase(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "backfilled %d accounts\n", n)
		return nil
	}

	if reconcile, _ := opts.Bool("reconcile"); reconcile {
		pairing := service.NewPairingService(store, repos, nil, logger, 6)

		var results []domain.ReconcileResult
		ids, _ := opts["<account_id>"].([]string)
		if len(ids) == 0 {
			all, err := pairing.ReconcileAll(ctx)
			results = all
			if err != nil {
				printResults(out, results)
				return err
			}
		} else {
			for _, id := range ids {
				r, err := pairing.Reconcile(ctx, id)
				if err != nil {
					printResults(out, results)
					return fmt.Errorf("reconciling %s: %w", id, err)
				}
				results = append(results, r)
			}
		}
		printResults(out, results)
		return nil
	}

	return fmt.Errorf("no command given")
}

func printResults(out io.Writer, results []domain.ReconcileResult) {
	for _, r := range results {
		if r.PartnerID != "" {
			fmt.Fprintf(out, "%s\t%s\tpartner=%s\n", r.AccountID, r.Status, r.PartnerID)
		} else {
			fmt.Fprintf(out, "%s\t%s\n", r.AccountID, r.Status)
		}
	}
}

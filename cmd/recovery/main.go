// Command recovery runs the reconciliation jobs by hand: a one-off sweep, a
// retry of a single conversation, a bulk retry of failed recordings, or a
// status report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/bootstrap"
	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const usage = `usage: recovery <command> [flags]

commands:
  sweep          expire stale sessions and retry recent recordings once
  retry          reconcile one conversation (--conversation required, --force to re-fetch)
  retry-failed   retry every failed or stuck recording
  status         print recording counts per status
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	flags := pflag.NewFlagSet(command, pflag.ContinueOnError)
	conversationID := flags.String("conversation", "", "conversation id to reconcile")
	force := flags.Bool("force", false, "re-fetch the transcript even if the recording is completed")
	maxAttempts := flags.Int("max-attempts", 0, "reconcile attempts per recording (default from SWEEP_MAX_ATTEMPTS)")
	concurrency := flags.Int("concurrency", 0, "recordings retried in parallel (default from SWEEP_CONCURRENCY)")
	since := flags.Duration("since", 0, "only retry recordings created within this window (0 = all)")
	limit := flags.Int("limit", 0, "maximum recordings to retry (0 = no limit)")
	timeout := flags.Duration("timeout", 30*time.Minute, "overall deadline")
	quiet := flags.BoolP("quiet", "q", false, "suppress logs, print only the result")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := validateCommand(command, *conversationID); err != nil {
		fmt.Fprint(os.Stderr, usage)
		return err
	}

	logg := logger.Nop()
	if !*quiet {
		var err error
		logg, err = logger.New(config.LoadAppConfig().Env)
		if err != nil {
			return err
		}
		defer logg.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(logg)
	if err != nil {
		return err
	}
	locker, closeLocker, err := bootstrap.NewLocker(ctx, logg)
	if err != nil {
		return err
	}
	defer closeLocker()
	components, err := bootstrap.Build(ctx, db, locker, logg)
	if err != nil {
		return err
	}

	switch command {
	case "sweep":
		return printJSON(components.Sweeper.SweepOnce(ctx))
	case "retry":
		reconcile := components.Reconciler.Reconcile
		if *force {
			reconcile = components.Reconciler.Refresh
		}
		rec, err := reconcile(ctx, strings.TrimSpace(*conversationID), nil)
		if rec != nil {
			if perr := printJSON(rec); perr != nil {
				return perr
			}
		}
		return err
	case "retry-failed":
		opts := components.Retry
		if *maxAttempts > 0 {
			opts.MaxAttempts = *maxAttempts
		}
		if *concurrency > 0 {
			opts.Concurrency = *concurrency
		}
		if *since > 0 {
			opts.CreatedSince = time.Now().UTC().Add(-*since)
		}
		opts.Limit = *limit
		report, err := components.Reconciler.RetryFailed(ctx, opts)
		if err != nil {
			return err
		}
		return printJSON(report)
	case "status":
		counts, err := components.Reconciler.StatusCounts(ctx)
		if err != nil {
			return err
		}
		return printJSON(counts)
	}
	return nil
}

// validateCommand runs before any connection is opened.
func validateCommand(command, conversationID string) error {
	switch command {
	case "sweep", "retry-failed", "status":
		return nil
	case "retry":
		if strings.TrimSpace(conversationID) == "" {
			return fmt.Errorf("--conversation is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}


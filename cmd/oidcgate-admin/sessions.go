package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/target/oidc-gate/internal/bootstrap"
)

const sessionScanBatch = 200

type clearSessionsOptions struct {
	DryRun bool
	Yes    bool
}

type sessionsConfirmOptions struct {
	opts   clearSessionsOptions
	prefix string
}

func (s sessionsConfirmOptions) IsDryRun() bool { return s.opts.DryRun }
func (s sessionsConfirmOptions) IsYes() bool    { return s.opts.Yes }
func (s sessionsConfirmOptions) GetWarning() string {
	return "WARNING: every OIDC session will be deleted and all visitors will have to log in again."
}
func (s sessionsConfirmOptions) GetTarget() string { return fmt.Sprintf("keys matching %q", s.prefix+"*") }

func parseClearSessionsFlags(args []string) (clearSessionsOptions, error) {
	fs := flag.NewFlagSet("clear-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearSessionsOptions
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Count matching sessions without deleting them")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return clearSessionsOptions{}, err
	}
	if fs.NArg() > 0 {
		return clearSessionsOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func runClearSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearSessionsFlags(args)
	if err != nil {
		return err
	}
	prefix := cmdCtx.Config.Redis.SessionPrefix
	if prefix == "" {
		return errors.New("REDIS_SESSION_PREFIX must not be empty")
	}
	if confirmErr := confirmAction(sessionsConfirmOptions{opts: opts, prefix: prefix}, "delete sessions"); confirmErr != nil {
		return confirmErr
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cmdCtx.Config.Redis, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	n, err := clearSessions(ctx, client, prefix, opts.DryRun)
	if err != nil {
		return err
	}
	if opts.DryRun {
		return writef(os.Stdout, "%d sessions would be deleted\n", n)
	}
	cmdCtx.Logger.InfoContext(ctx, "sessions cleared", "count", n, "prefix", prefix)
	return writef(os.Stdout, "deleted %d sessions\n", n)
}

// clearSessions deletes every key under prefix. Cluster clients are scanned
// master by master since SCAN only walks a single node.
func clearSessions(ctx context.Context, client redis.UniversalClient, prefix string, dryRun bool) (int, error) {
	if cc, ok := client.(*redis.ClusterClient); ok {
		var total atomic.Int64
		err := cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := clearSessionsOnNode(ctx, node, prefix, dryRun)
			total.Add(int64(n))
			return err
		})
		return int(total.Load()), err
	}
	return clearSessionsOnNode(ctx, client, prefix, dryRun)
}

func clearSessionsOnNode(ctx context.Context, client redis.UniversalClient, prefix string, dryRun bool) (int, error) {
	iter := client.Scan(ctx, 0, prefix+"*", sessionScanBatch).Iterator()
	batch := make([]string, 0, sessionScanBatch)
	total := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		total += len(batch)
		if !dryRun {
			pipe := client.Pipeline()
			for _, k := range batch {
				pipe.Del(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("delete sessions: %w", err)
			}
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == sessionScanBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("scan sessions: %w", err)
	}
	return total, flush()
}

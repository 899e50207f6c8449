package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quorumworks/tallyd/internal/adapters/redislock"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

const lockCommandTimeout = time.Minute

type releaseLockOptions struct {
	Election  string
	Operation string
	Yes       bool
	DryRun    bool
}

func runLocks(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, lockCommandTimeout)
	defer cancel()

	redisClient, err := connectLockStore(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	pattern := redislock.DefaultKeyPrefix + "*"
	cmdCtx.Logger.Info("scanning lock store", "pattern", pattern)

	if err := writef(os.Stdout, "\nOperation Locks\n"); err != nil {
		return fmt.Errorf("print locks header: %w", err)
	}

	total, err := writeLockEntries(ctx, redisClient, pattern)
	if err != nil {
		return err
	}

	if total == 0 {
		if err := writeln(os.Stdout, "(no locks held)"); err != nil {
			return fmt.Errorf("print locks none: %w", err)
		}
		return nil
	}

	if err := writef(os.Stdout, "\nTotal locks: %d\n", total); err != nil {
		return fmt.Errorf("print locks total: %w", err)
	}
	return nil
}

func writeLockEntries(ctx context.Context, client redis.UniversalClient, pattern string) (int, error) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Key\tHolder\tAcquired\tExpected End\tTTL"); err != nil {
		return 0, fmt.Errorf("print locks columns: %w", err)
	}

	total := 0
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		total++

		if err := writeLockEntry(ctx, w, client, key); err != nil {
			return 0, err
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	if total > 0 {
		if err := w.Flush(); err != nil {
			return 0, fmt.Errorf("flush locks table: %w", err)
		}
	}
	return total, nil
}

func writeLockEntry(ctx context.Context, w *tabwriter.Writer, client redis.UniversalClient, key string) error {
	raw, err := client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SCAN and GET.
			return nil
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		ttl = -1
	}

	var info model.LockInfo
	if unmarshalErr := json.Unmarshal([]byte(raw), &info); unmarshalErr != nil {
		if writeErr := writef(w, "%s\t(unreadable: %v)\t\t\t%s\n", key, unmarshalErr, renderLockTTL(ttl)); writeErr != nil {
			return fmt.Errorf("print unreadable lock row: %w", writeErr)
		}
		return nil
	}

	if writeErr := writef(w, "%s\t%s\t%s\t%s\t%s\n",
		key,
		info.Holder,
		info.AcquiredAt.Format(time.RFC3339),
		info.ExpectedEnd.Format(time.RFC3339),
		renderLockTTL(ttl),
	); writeErr != nil {
		return fmt.Errorf("print lock row: %w", writeErr)
	}
	return nil
}

func renderLockTTL(d time.Duration) string {
	switch {
	case d == -1*time.Second:
		return "no expiry"
	case d == -2*time.Second:
		return "key missing"
	default:
		return d.Round(time.Second).String()
	}
}

func runReleaseLock(cmdCtx *commandContext, args []string) error {
	opts, err := parseReleaseLockFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, lockCommandTimeout)
	defer cancel()

	redisClient, err := connectLockStore(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	lockKey := model.LockKey{
		ElectionID: opts.Election,
		Operation:  model.OperationType(opts.Operation),
	}
	key := redislock.DefaultKeyPrefix + lockKey.String()

	holder, exists, err := describeLockHolder(ctx, redisClient, key)
	if err != nil {
		return err
	}
	if !exists {
		if writeErr := writef(os.Stdout, "Lock %s is not held.\n", key); writeErr != nil {
			return fmt.Errorf("print lock free: %w", writeErr)
		}
		return nil
	}

	if confirmErr := confirmAction(confirmRequest{
		Action: "force-release the operation lock held by " + holder,
		Target: key,
		Yes:    opts.Yes,
		DryRun: opts.DryRun,
	}); confirmErr != nil {
		return confirmErr
	}

	if opts.DryRun {
		if writeErr := writef(os.Stdout, "Dry-run: would release %s (held by %s)\n", key, holder); writeErr != nil {
			return fmt.Errorf("print release dry run: %w", writeErr)
		}
		return nil
	}

	deleted, err := redisClient.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if deleted == 0 {
		if writeErr := writef(os.Stdout, "Lock %s was already released.\n", key); writeErr != nil {
			return fmt.Errorf("print already released: %w", writeErr)
		}
		return nil
	}

	cmdCtx.Logger.Info("released operation lock", "key", key, "previous_holder", holder)
	if writeErr := writef(os.Stdout, "Released %s (was held by %s)\n", key, holder); writeErr != nil {
		return fmt.Errorf("print release summary: %w", writeErr)
	}
	return nil
}

// describeLockHolder reads the lock to name the current holder in the
// confirmation prompt. A missing key reports exists=false.
func describeLockHolder(ctx context.Context, client redis.UniversalClient, key string) (string, bool, error) {
	raw, err := client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var info model.LockInfo
	if unmarshalErr := json.Unmarshal([]byte(raw), &info); unmarshalErr != nil {
		return "(unreadable holder)", true, nil
	}
	return info.Holder, true, nil
}

func parseReleaseLockFlags(args []string) (releaseLockOptions, error) {
	fs := flag.NewFlagSet("release-lock", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts releaseLockOptions
	fs.StringVar(&opts.Election, "election", "", "Election ID of the lock (required)")
	fs.StringVar(&opts.Operation, "operation", "", "Operation type of the lock (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")

	if err := fs.Parse(args); err != nil {
		return releaseLockOptions{}, err
	}

	opts.Election = strings.TrimSpace(opts.Election)
	opts.Operation = strings.ToLower(strings.TrimSpace(opts.Operation))

	if opts.Election == "" {
		return releaseLockOptions{}, errors.New("--election is required")
	}
	if !model.OperationType(opts.Operation).Valid() {
		return releaseLockOptions{}, fmt.Errorf(
			"--operation must be one of %s", operationTypeList())
	}

	return opts, nil
}

func operationTypeList() string {
	ops := model.AllOperationTypes()
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}

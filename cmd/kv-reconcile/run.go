package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"sipenduk/common/database"
	"sipenduk/common/logger"
	"sipenduk/common/redis"
	"sipenduk/internal/config"
	"sipenduk/internal/repository"
	"sipenduk/internal/service"
	"sipenduk/internal/store"
)

// environment 连接 Postgres（目标）与 Redis（旧数据）；导入不允许退回内存存储
type environment struct {
	reconcile service.ReconcileService
	close     func()
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg := config.Load()
	log, err := logger.NewLogger(cfg.Log.Level, "console", "kv-reconcile")
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if _, err := repository.Migrate(ctx, db, repository.Schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	redisClient, err := redis.Open(ctx, &cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svc := service.NewReconcileService(repository.NewPostgresStore(db), store.NewRedisKV(redisClient), log)
	return &environment{
		reconcile: svc,
		close: func() {
			_ = redis.Close(redisClient)
			_ = db.Close()
			_ = log.Sync()
		},
	}, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 10*time.Minute)
}

func runImportCmd(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	return runImport(ctx, env.reconcile, dryRun, outputJSON, cmd.OutOrStdout())
}

func runRepairCmd(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	return runRepair(ctx, env.reconcile, dryRun, outputJSON, cmd.OutOrStdout())
}

func runImport(ctx context.Context, svc service.ReconcileService, dry, asJSON bool, out io.Writer) error {
	report, err := svc.ImportLegacy(ctx, service.ImportOptions{DryRun: dry})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if asJSON {
		return writeJSON(out, report)
	}

	if report.DryRun {
		fmt.Fprintln(out, "--- Legacy import (dry run, nothing written) ---")
	} else {
		fmt.Fprintln(out, "--- Legacy import ---")
	}
	names := make([]string, 0, len(report.Entities))
	for name := range report.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := report.Entities[name]
		fmt.Fprintf(out, "%-12s scanned=%d imported=%d skipped=%d failed=%d\n", name, e.Scanned, e.Imported, e.Skipped, e.Failed)
		for _, msg := range e.Errors {
			fmt.Fprintf(out, "  ! %s\n", msg)
		}
	}
	printCorrections(out, report.Corrections)
	return nil
}

func runRepair(ctx context.Context, svc service.ReconcileService, dry, asJSON bool, out io.Writer) error {
	corrections, err := svc.RepairStatuses(ctx, dry)
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}
	if asJSON {
		return writeJSON(out, map[string]any{"dry_run": dry, "corrections": corrections})
	}
	if dry {
		fmt.Fprintln(out, "--- Status repair (dry run, nothing written) ---")
	} else {
		fmt.Fprintln(out, "--- Status repair ---")
	}
	printCorrections(out, corrections)
	return nil
}

func printCorrections(out io.Writer, corrections []service.StatusCorrection) {
	if len(corrections) == 0 {
		fmt.Fprintln(out, "status: all residents consistent")
		return
	}
	fmt.Fprintf(out, "status: %d correction(s)\n", len(corrections))
	for _, c := range corrections {
		fmt.Fprintf(out, "  %s %-30s %s -> %s\n", c.NIK, c.FullName, c.From, c.To)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Command runtime-authority boots a standalone runtime authority process:
// it opens the configured event log, wires the authority with
// observability, an audit timeline and a CEL query filter, and creates a
// demonstration run so an operator can confirm the wiring end to end. The
// Redis and rate-limit settings in its configuration are not used here.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/openagents/runtime-authority/pkg/audit"
	"github.com/openagents/runtime-authority/pkg/authority"
	"github.com/openagents/runtime-authority/pkg/config"
	"github.com/openagents/runtime-authority/pkg/eventlog"
	"github.com/openagents/runtime-authority/pkg/observability"
	"github.com/openagents/runtime-authority/pkg/queryfilter"
	"github.com/openagents/runtime-authority/pkg/receipts"
	"github.com/openagents/runtime-authority/pkg/replay"
	"github.com/openagents/runtime-authority/pkg/runtypes"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	log.Println("[runtime-authority] opening event log")
	eventLog, err := openLog(ctx, cfg)
	if err != nil {
		log.Fatalf("open event log: %v", err)
	}

	obs, err := observability.New()
	if err != nil {
		log.Fatalf("init observability: %v", err)
	}

	a := authority.New(eventLog, authority.WithObservability(obs))
	timeline := audit.NewTimeline()
	filter, err := queryfilter.NewFilter()
	if err != nil {
		log.Fatalf("init query filter: %v", err)
	}

	run, err := a.CreateRun(ctx, runtypes.StartRunRequest{
		WorkerID: "demo-worker",
		Metadata: map[string]interface{}{
			"source":           "cmd/runtime-authority bootstrap",
			"policy_bundle_id": cfg.DefaultPolicyBundleID,
		},
	})
	if err != nil {
		log.Fatalf("create run: %v", err)
	}
	timeline.Record(audit.EntryRunCreated, run.ID, "runtime-authority", "run created", nil)

	outcome, err := a.AppendEvent(ctx, run.ID, "run.started", map[string]interface{}{"ok": true}, "", nil)
	if err != nil {
		log.Fatalf("append event: %v", err)
	}
	timeline.Record(audit.EntryEventAppended, run.ID, "runtime-authority", "event appended", map[string]interface{}{"seq": outcome.Event.Seq})

	finished, err := a.UpdateRunStatus(ctx, run.ID, runtypes.RunStatusSucceeded)
	if err != nil {
		log.Fatalf("update run status: %v", err)
	}
	timeline.Record(audit.EntryStatusUpdated, run.ID, "runtime-authority", "status updated", map[string]interface{}{"status": string(finished.Status)})

	succeededPred, err := filter.Predicate(`run.status == "Succeeded"`)
	if err != nil {
		log.Fatalf("compile query filter: %v", err)
	}
	matching, err := a.ListRuns(ctx, succeededPred)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	slog.Info("runs matching filter", "count", len(matching))

	receipt, err := receipts.Build(finished, finished.UpdatedAt)
	if err != nil {
		log.Fatalf("build receipt: %v", err)
	}
	slog.Info("receipt built", "session_id", receipt.SessionID, "trajectory_hash", receipt.TrajectoryHash)

	replayBytes, err := replay.Build(finished, finished.UpdatedAt)
	if err != nil {
		log.Fatalf("build replay: %v", err)
	}
	slog.Info("replay built", "bytes", len(replayBytes))
}

func openLog(ctx context.Context, cfg config.Config) (eventlog.Log, error) {
	if cfg.MemoryOnly {
		return eventlog.NewMemoryLog(), nil
	}
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return eventlog.OpenPostgresLog(ctx, db)
	}
	if cfg.LogPath != "" {
		return eventlog.OpenPath(cfg.LogPath)
	}
	return eventlog.OpenDefault(), nil
}

package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/crystalclearhouse/mintguard/internal/records"
)

// Agent drives the poll-evaluate-execute-update cycle over canonical
// records. Records within a cycle are processed strictly sequentially:
// one record's store write completes before the next record starts.
type Agent struct {
	Store    records.Store
	Executor *Executor

	// Actor is this agent's identity, stamped as last_actor on every
	// write. The pickup query excludes it, so the agent never
	// reprocesses its own output.
	Actor string

	Interval time.Duration
	Logger   *log.Logger
}

// Run polls immediately, then at every interval tick until ctx is
// cancelled. Cancellation stops new cycles; it does not interrupt a
// cycle already in flight. Cycles never overlap within one Agent since
// Run drives them from a single goroutine; running two agent processes
// against the same store can still double-execute a record, because
// pickup eligibility is only cleared by the end-of-processing write.
func (a *Agent) Run(ctx context.Context) {
	interval := a.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	a.Poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Poll(ctx)
		}
	}
}

// Poll fetches pending records and processes each in order. A failure on
// one record is contained to that record.
func (a *Agent) Poll(ctx context.Context) {
	a.logf("polling for pending records")

	pending, err := a.Store.PendingRecords(ctx)
	if err != nil {
		a.logf("poll failed: %v", err)
		return
	}
	a.logf("found %d pending record(s)", len(pending))

	for _, rec := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := a.ProcessRecord(ctx, rec); err != nil {
			a.logf("record %s failed: %v", rec.ID, err)
			a.forceFail(ctx, rec.ID, err)
		}
	}
}

// ProcessRecord evaluates one record, executes if SAFE, and writes the
// resulting state transition. Every write carries this agent's identity.
func (a *Agent) ProcessRecord(ctx context.Context, rec records.CanonicalRecord) error {
	decision := Evaluate(rec.NormalizedPayload)
	a.logf("record %s: %s - %s", rec.ID, decision.Verdict, decision.Reason)

	executionOK := false
	if decision.Verdict == VerdictSafe {
		result := a.Executor.Execute(ctx, decision, rec.ID)
		executionOK = result.Success
		a.logf("record %s: %s", rec.ID, result.Message)
	}

	update := records.Update{
		Status:     TransitionFromDecision(decision.Verdict, executionOK),
		Verdict:    string(decision.Verdict),
		NextAction: decision.NextAction,
		LastActor:  a.Actor,
	}
	if err := a.Store.UpdateRecord(ctx, rec.ID, update); err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	a.logf("record %s updated: %s", rec.ID, update.Status)
	return nil
}

// forceFail transitions a record whose processing errored. Best-effort:
// if even this write fails there is nothing left to do but log and move
// to the next record.
func (a *Agent) forceFail(ctx context.Context, id string, cause error) {
	message := "Error: " + cause.Error()
	update := records.Update{
		Status:     records.StatusFailed,
		Verdict:    string(VerdictFail),
		NextAction: &message,
		LastActor:  a.Actor,
	}
	if err := a.Store.UpdateRecord(ctx, id, update); err != nil {
		a.logf("failed to mark record %s as failed: %v", id, err)
	}
}

func (a *Agent) logf(format string, args ...any) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

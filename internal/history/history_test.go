package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zulandar/synapse/internal/clock"
	"github.com/zulandar/synapse/internal/models"
	"github.com/zulandar/synapse/internal/orchestrator"
	"github.com/zulandar/synapse/internal/scenario"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestRecorder(t *testing.T, maxRuns int) *Recorder {
	t.Helper()
	r, err := OpenMemory(maxRuns)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func testRun(id string, cat scenario.Category, started time.Time) orchestrator.Run {
	return orchestrator.Run{
		ID:        id,
		Input:     "input for " + id,
		Category:  cat,
		Tools:     scenario.ToolsFor(cat),
		StartedAt: started,
	}
}

func finish(run orchestrator.Run) orchestrator.Run {
	run.Steps = 4
	run.Mirrors = 1
	run.Completed = true
	run.Resolution = "done"
	run.FinishedAt = run.StartedAt.Add(6500 * time.Millisecond)
	return run
}

func TestNew_RequiresDB(t *testing.T) {
	_, err := New(Opts{})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestNew_RejectsNegativeMaxRuns(t *testing.T) {
	r := openTestRecorder(t, 0)
	if _, err := New(Opts{DB: r.db, MaxRuns: -1}); err == nil {
		t.Fatal("expected error for negative max runs")
	}
}

func TestRunStarted_InsertsInProgressRow(t *testing.T) {
	r := openTestRecorder(t, 0)
	ctx := context.Background()

	if err := r.RunStarted(ctx, testRun("run-1", scenario.Traffic, epoch)); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}

	got, err := r.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.RunInProgress {
		t.Errorf("Status = %q, want %q", got.Status, models.RunInProgress)
	}
	if got.Category != "traffic" {
		t.Errorf("Category = %q, want %q", got.Category, "traffic")
	}
	if got.Messages != 1 {
		t.Errorf("Messages = %d, want 1", got.Messages)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
	}
	tools, err := Tools(*got)
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	want := []string{"check_traffic", "calculate_alternative_route"}
	if fmt.Sprint(tools) != fmt.Sprint(want) {
		t.Errorf("Tools = %v, want %v", tools, want)
	}
}

func TestRunFinished_MarksResolved(t *testing.T) {
	r := openTestRecorder(t, 0)
	ctx := context.Background()
	run := testRun("run-1", scenario.Merchant, epoch)

	if err := r.RunStarted(ctx, run); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}
	if err := r.RunFinished(ctx, finish(run)); err != nil {
		t.Fatalf("RunFinished: %v", err)
	}

	got, err := r.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.RunResolved {
		t.Errorf("Status = %q, want %q", got.Status, models.RunResolved)
	}
	if got.Messages != 6 {
		t.Errorf("Messages = %d, want 6", got.Messages)
	}
	if got.Resolution != "done" {
		t.Errorf("Resolution = %q, want %q", got.Resolution, "done")
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt is nil")
	}
	if d := got.CompletedAt.Sub(got.StartedAt); d != 6500*time.Millisecond {
		t.Errorf("duration = %v, want 6.5s", d)
	}
}

func TestRunFinished_Interrupted(t *testing.T) {
	r := openTestRecorder(t, 0)
	ctx := context.Background()
	run := testRun("run-1", scenario.Dispute, epoch)

	if err := r.RunStarted(ctx, run); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}
	run.Steps = 2
	run.FinishedAt = epoch.Add(3 * time.Second)
	if err := r.RunFinished(ctx, run); err != nil {
		t.Fatalf("RunFinished: %v", err)
	}

	got, _ := r.Get(ctx, "run-1")
	if got.Status != models.RunInterrupted {
		t.Errorf("Status = %q, want %q", got.Status, models.RunInterrupted)
	}
	if got.Messages != 3 {
		t.Errorf("Messages = %d, want 3", got.Messages)
	}
}

func TestRunFinished_UnknownRun(t *testing.T) {
	r := openTestRecorder(t, 0)
	err := r.RunFinished(context.Background(), finish(testRun("ghost", scenario.Delivery, epoch)))
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := openTestRecorder(t, 0)
	_, err := r.Get(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	r := openTestRecorder(t, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		run := testRun(fmt.Sprintf("run-%d", i), scenario.Traffic, epoch.Add(time.Duration(i)*time.Minute))
		if err := r.RunStarted(ctx, run); err != nil {
			t.Fatalf("RunStarted %d: %v", i, err)
		}
	}

	runs, err := r.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	for i, want := range []string{"run-4", "run-3", "run-2"} {
		if runs[i].ID != want {
			t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, want)
		}
	}

	all, err := r.List(ctx, 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len(all) = %d, want 5", len(all))
	}
}

func TestPrune_KeepsNewestAndInProgress(t *testing.T) {
	r := openTestRecorder(t, 2)
	ctx := context.Background()

	// The oldest run never finishes and must survive pruning.
	stuck := testRun("run-0", scenario.Traffic, epoch)
	if err := r.RunStarted(ctx, stuck); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}
	for i := 1; i <= 3; i++ {
		run := testRun(fmt.Sprintf("run-%d", i), scenario.Merchant, epoch.Add(time.Duration(i)*time.Minute))
		if err := r.RunStarted(ctx, run); err != nil {
			t.Fatalf("RunStarted %d: %v", i, err)
		}
		if err := r.RunFinished(ctx, finish(run)); err != nil {
			t.Fatalf("RunFinished %d: %v", i, err)
		}
	}

	runs, err := r.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	if fmt.Sprint(ids) != "[run-3 run-0]" {
		t.Errorf("remaining = %v, want [run-3 run-0]", ids)
	}
}

func TestStats(t *testing.T) {
	r := openTestRecorder(t, 0)
	ctx := context.Background()

	empty, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if empty.Total != 0 || empty.AvgMessages != 0 {
		t.Errorf("empty stats = %+v", empty)
	}

	a := testRun("a", scenario.Traffic, epoch)
	b := testRun("b", scenario.Traffic, epoch.Add(time.Minute))
	c := testRun("c", scenario.Delivery, epoch.Add(2*time.Minute))
	for _, run := range []orchestrator.Run{a, b, c} {
		if err := r.RunStarted(ctx, run); err != nil {
			t.Fatalf("RunStarted: %v", err)
		}
	}
	if err := r.RunFinished(ctx, finish(a)); err != nil {
		t.Fatalf("RunFinished: %v", err)
	}
	short := b
	short.Steps = 2
	short.Completed = false
	if err := r.RunFinished(ctx, short); err != nil {
		t.Fatalf("RunFinished: %v", err)
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Resolved != 1 {
		t.Errorf("Resolved = %d, want 1", stats.Resolved)
	}
	if stats.InProgress != 1 {
		t.Errorf("InProgress = %d, want 1", stats.InProgress)
	}
	if stats.Interrupted != 1 {
		t.Errorf("Interrupted = %d, want 1", stats.Interrupted)
	}
	if stats.AvgMessages != 6 {
		t.Errorf("AvgMessages = %v, want 6", stats.AvgMessages)
	}
	if stats.ByCategory["traffic"] != 2 || stats.ByCategory["delivery"] != 1 {
		t.Errorf("ByCategory = %v", stats.ByCategory)
	}
}

func TestRecorder_ObservesOrchestrator(t *testing.T) {
	r := openTestRecorder(t, 0)
	o := orchestrator.New(orchestrator.Opts{
		Clock:    clock.NewVirtual(epoch),
		Observer: r,
	})
	defer o.Close()

	ctx := context.Background()
	if _, err := o.SubmitOperationsMessage(ctx, "Traffic accident on Route 101, customer going to airport"); err != nil {
		t.Fatalf("SubmitOperationsMessage: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	runs, err := r.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != models.RunResolved {
		t.Errorf("Status = %q, want resolved", got.Status)
	}
	if got.Category != "traffic" {
		t.Errorf("Category = %q, want traffic", got.Category)
	}
	if got.Messages != 6 {
		t.Errorf("Messages = %d, want 6", got.Messages)
	}
	if got.Resolution != "Customer and driver notified of optimized route. ETA updated automatically." {
		t.Errorf("Resolution = %q", got.Resolution)
	}
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

func sources(n int) []*models.Snapshot {
	out := make([]*models.Snapshot, n)
	for i := range out {
		name := fmt.Sprintf("img%d.png", i+1)
		out[i] = models.NewSnapshot(name, "image/png", 1, 1, []byte(name))
	}
	return out
}

func echo(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
	return models.NewSnapshot(src.Name(), src.MIMEType(), 1, 1, []byte(prompt)), nil
}

func statuses(p *Pipeline) []models.BatchStatus {
	var out []models.BatchStatus
	for _, item := range p.Items() {
		out = append(out, item.Status)
	}
	return out
}

func TestStartProcessesAllItemsInOrder(t *testing.T) {
	p := New(sources(3))
	var order []string
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		order = append(order, src.Name())
		return echo(ctx, src, prompt)
	}
	if err := p.Start(context.Background(), op, "sharpen"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := []string{"img1.png", "img2.png", "img3.png"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	for _, item := range p.Items() {
		if item.Status != models.BatchDone || item.Result == nil || item.ErrorMessage != "" {
			t.Errorf("item %s: status=%s result=%v msg=%q", item.ID, item.Status, item.Result, item.ErrorMessage)
		}
	}
	if p.Progress().Fraction() != 1 {
		t.Errorf("Fraction() = %v, want 1", p.Progress().Fraction())
	}
}

func TestStartIsStrictlySequential(t *testing.T) {
	p := New(sources(5))
	var inFlight, maxInFlight atomic.Int32
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		defer inFlight.Add(-1)
		return echo(ctx, src, prompt)
	}
	_ = p.Start(context.Background(), op, "x")
	if maxInFlight.Load() != 1 {
		t.Errorf("max in-flight = %d, want 1", maxInFlight.Load())
	}
}

func TestFailureDoesNotAbortLaterItems(t *testing.T) {
	p := New(sources(3))
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		if src.Name() == "img2.png" {
			return nil, errors.New("safety refusal")
		}
		return echo(ctx, src, prompt)
	}
	_ = p.Start(context.Background(), op, "x")

	items := p.Items()
	want := []models.BatchStatus{models.BatchDone, models.BatchError, models.BatchDone}
	for i, item := range items {
		if item.Status != want[i] {
			t.Errorf("item %d status = %s, want %s", i, item.Status, want[i])
		}
	}
	if items[1].ErrorMessage != "safety refusal" {
		t.Errorf("ErrorMessage = %q, want verbatim collaborator message", items[1].ErrorMessage)
	}
	pr := p.Progress()
	if pr.Done != 2 || pr.Failed != 1 {
		t.Errorf("progress = %+v", pr)
	}
}

func TestCancelAfterSecondItemStarts(t *testing.T) {
	p := New(sources(5))
	calls := 0
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		calls++
		if calls == 2 {
			p.Cancel()
			return nil, errors.New("network error")
		}
		return echo(ctx, src, prompt)
	}
	if err := p.Start(context.Background(), op, "x"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got := statuses(p)
	want := []models.BatchStatus{models.BatchDone, models.BatchError, models.BatchPending, models.BatchPending, models.BatchPending}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
	if calls != 2 {
		t.Errorf("operation called %d times, want 2", calls)
	}
}

func TestCancelResetsOnNextRun(t *testing.T) {
	p := New(sources(3))
	p.Cancel()
	_ = p.Start(context.Background(), echo, "x")
	if p.Progress().Done != 3 {
		t.Errorf("a fresh run should clear an earlier cancel, got %+v", p.Progress())
	}
}

func TestCancelNeverRewritesFinishedItems(t *testing.T) {
	p := New(sources(2))
	_ = p.Start(context.Background(), echo, "x")
	p.Cancel()
	for _, item := range p.Items() {
		if item.Status != models.BatchDone {
			t.Errorf("status = %s after cancel, want done", item.Status)
		}
	}
}

func TestContextCancellationStopsBeforeNextItem(t *testing.T) {
	p := New(sources(3))
	ctx, cancel := context.WithCancel(context.Background())
	op := func(c context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		cancel()
		return echo(c, src, prompt)
	}
	_ = p.Start(ctx, op, "x")
	pr := p.Progress()
	if pr.Done != 1 || pr.Pending != 2 {
		t.Errorf("progress = %+v, want 1 done 2 pending", pr)
	}
}

func TestStartWithNothingToDo(t *testing.T) {
	p := New(sources(2))
	_ = p.Start(context.Background(), echo, "x")

	notified := 0
	p.onChange = func(models.BatchItem) { notified++ }
	called := false
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		called = true
		return nil, nil
	}
	if err := p.Start(context.Background(), op, "x"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if called || notified != 0 {
		t.Error("Start() with no pending or failed items must not have side effects")
	}

	empty := New(nil)
	if err := empty.Start(context.Background(), op, "x"); err != nil || called {
		t.Error("empty batch should return immediately")
	}
}

func TestSecondRunPicksUpFailedItems(t *testing.T) {
	p := New(sources(2))
	fail := true
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		if fail && src.Name() == "img2.png" {
			return nil, errors.New("boom")
		}
		return echo(ctx, src, prompt)
	}
	_ = p.Start(context.Background(), op, "x")
	fail = false
	_ = p.Start(context.Background(), op, "x")
	if p.Progress().Done != 2 {
		t.Errorf("progress = %+v, want all done", p.Progress())
	}
}

func TestStartWhileRunning(t *testing.T) {
	p := New(sources(1))
	entered := make(chan struct{})
	release := make(chan struct{})
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		close(entered)
		<-release
		return echo(ctx, src, prompt)
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.Start(context.Background(), op, "x")
	}()
	<-entered
	if !p.Running() {
		t.Error("Running() should be true during a run")
	}
	if err := p.Start(context.Background(), echo, "x"); !errors.Is(err, ErrRunning) {
		t.Errorf("Start() error = %v, want ErrRunning", err)
	}
	if err := p.Reset(); !errors.Is(err, ErrRunning) {
		t.Errorf("Reset() error = %v, want ErrRunning", err)
	}
	close(release)
	wg.Wait()
	if p.Running() {
		t.Error("Running() should be false after the run")
	}
}

func TestRetry(t *testing.T) {
	p := New(sources(3))
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		if src.Name() == "img1.png" {
			return nil, errors.New("empty response")
		}
		return echo(ctx, src, prompt)
	}
	calls := 0
	wrapped := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		calls++
		if calls == 2 {
			p.Cancel()
		}
		return op(ctx, src, prompt)
	}
	_ = p.Start(context.Background(), wrapped, "x")
	items := p.Items()
	failed, done, pending := items[0], items[1], items[2]
	if failed.Status != models.BatchError || done.Status != models.BatchDone || pending.Status != models.BatchPending {
		t.Fatalf("unexpected statuses %v", statuses(p))
	}

	t.Run("rejects pending item", func(t *testing.T) {
		if err := p.Retry(context.Background(), pending.ID, echo, "x"); !errors.Is(err, ErrNotRetryable) {
			t.Errorf("Retry() error = %v, want ErrNotRetryable", err)
		}
		if got, _ := p.Item(pending.ID); got.Status != models.BatchPending {
			t.Errorf("status = %s, want pending", got.Status)
		}
	})

	t.Run("rejects done item", func(t *testing.T) {
		if err := p.Retry(context.Background(), done.ID, echo, "x"); !errors.Is(err, ErrNotRetryable) {
			t.Errorf("Retry() error = %v, want ErrNotRetryable", err)
		}
	})

	t.Run("rejects unknown item", func(t *testing.T) {
		if err := p.Retry(context.Background(), "nope", echo, "x"); !errors.Is(err, ErrUnknownItem) {
			t.Errorf("Retry() error = %v, want ErrUnknownItem", err)
		}
	})

	t.Run("reruns failed item", func(t *testing.T) {
		var seen []models.BatchStatus
		p.onChange = func(item models.BatchItem) {
			if item.ID == failed.ID {
				seen = append(seen, item.Status)
			}
		}
		if err := p.Retry(context.Background(), failed.ID, echo, "again"); err != nil {
			t.Fatalf("Retry() error = %v", err)
		}
		got, _ := p.Item(failed.ID)
		if got.Status != models.BatchDone || got.ErrorMessage != "" || got.Result == nil {
			t.Errorf("after retry: %+v", got)
		}
		want := []models.BatchStatus{models.BatchProcessing, models.BatchDone}
		if fmt.Sprint(seen) != fmt.Sprint(want) {
			t.Errorf("transitions = %v, want %v", seen, want)
		}
	})
}

func TestReset(t *testing.T) {
	p := New(sources(2))
	_ = p.Start(context.Background(), echo, "x")
	if err := p.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	for _, item := range p.Items() {
		if item.Status != models.BatchPending || item.Result != nil {
			t.Errorf("item after reset: %+v", item)
		}
	}
}

func TestChangeHookSeesOrderedTransitions(t *testing.T) {
	var events []string
	p := New(sources(2), WithChangeHook(func(item models.BatchItem) {
		events = append(events, item.Source.Name()+":"+string(item.Status))
	}))
	_ = p.Start(context.Background(), echo, "x")
	want := []string{
		"img1.png:processing", "img1.png:done",
		"img2.png:processing", "img2.png:done",
	}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		name string
		pr   Progress
		want float64
	}{
		{"empty", Progress{}, 0},
		{"half", Progress{Total: 4, Done: 1, Failed: 1, Pending: 2}, 0.5},
		{"all failed", Progress{Total: 2, Failed: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pr.Fraction(); got != tt.want {
				t.Errorf("Fraction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryRejectsProcessingItem(t *testing.T) {
	p := New(sources(1))
	started := make(chan struct{})
	release := make(chan struct{})
	op := func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		close(started)
		<-release
		return echo(ctx, src, prompt)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.Start(context.Background(), op, "x")
	}()
	<-started

	id := p.Items()[0].ID
	var retried atomic.Bool
	err := p.Retry(context.Background(), id, func(ctx context.Context, src *models.Snapshot, prompt string) (*models.Snapshot, error) {
		retried.Store(true)
		return echo(ctx, src, prompt)
	}, "again")
	if !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Retry() error = %v, want ErrNotRetryable", err)
	}
	if got, _ := p.Item(id); got.Status != models.BatchProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}

	close(release)
	wg.Wait()
	if retried.Load() {
		t.Error("retry must not run the operation for an item in flight")
	}
	if got, _ := p.Item(id); got.Status != models.BatchDone {
		t.Errorf("status after run = %s, want done", got.Status)
	}
}

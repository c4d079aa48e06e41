package platform

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Observer receives structured progress events from the orchestrator and
// every driver call. Implementations must be safe for concurrent use since
// items within a stage are applied in parallel.
type Observer interface {
	StageStarted(ctx context.Context, stage Stage)
	StageFinished(ctx context.Context, stage Stage, elapsed time.Duration, err error)
	// Applied reports the action taken for one item.
	Applied(ctx context.Context, kind Kind, key string, action Action, diffs []DiffEntry)
	// Polled reports one status poll of an asynchronous operation.
	Polled(ctx context.Context, kind Kind, status string)
	// Notice reports anything else worth surfacing, such as a benign
	// not-found during delete.
	Notice(ctx context.Context, msg string, attrs ...any)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) StageStarted(context.Context, Stage)                        {}
func (NopObserver) StageFinished(context.Context, Stage, time.Duration, error) {}
func (NopObserver) Applied(context.Context, Kind, string, Action, []DiffEntry) {}
func (NopObserver) Polled(context.Context, Kind, string)                       {}
func (NopObserver) Notice(context.Context, string, ...any)                     {}

// LogObserver renders events through slog.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver. A nil logger uses slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) StageStarted(ctx context.Context, stage Stage) {
	o.logger.DebugContext(ctx, "stage started", "stage", stage)
}

func (o *LogObserver) StageFinished(ctx context.Context, stage Stage, elapsed time.Duration, err error) {
	if err != nil {
		o.logger.ErrorContext(ctx, "stage failed", "stage", stage, "elapsed", elapsed, "error", err)
		return
	}
	o.logger.InfoContext(ctx, "stage finished", "stage", stage, "elapsed", elapsed)
}

func (o *LogObserver) Applied(ctx context.Context, kind Kind, key string, action Action, diffs []DiffEntry) {
	if action == ActionIgnore {
		o.logger.DebugContext(ctx, "unchanged", "kind", kind, "key", key)
		return
	}
	attrs := []any{"kind", kind, "key", key, "action", action}
	if len(diffs) > 0 {
		fields := make([]string, len(diffs))
		for i, d := range diffs {
			fields[i] = d.Path
		}
		attrs = append(attrs, "fields", fields)
	}
	o.logger.InfoContext(ctx, "applied", attrs...)
}

func (o *LogObserver) Polled(ctx context.Context, kind Kind, status string) {
	o.logger.DebugContext(ctx, "polled", "kind", kind, "status", status)
}

func (o *LogObserver) Notice(ctx context.Context, msg string, attrs ...any) {
	o.logger.InfoContext(ctx, msg, attrs...)
}

// Observers fans every event out to each member in order.
type Observers []Observer

func (m Observers) StageStarted(ctx context.Context, stage Stage) {
	for _, o := range m {
		o.StageStarted(ctx, stage)
	}
}

func (m Observers) StageFinished(ctx context.Context, stage Stage, elapsed time.Duration, err error) {
	for _, o := range m {
		o.StageFinished(ctx, stage, elapsed, err)
	}
}

func (m Observers) Applied(ctx context.Context, kind Kind, key string, action Action, diffs []DiffEntry) {
	for _, o := range m {
		o.Applied(ctx, kind, key, action, diffs)
	}
}

func (m Observers) Polled(ctx context.Context, kind Kind, status string) {
	for _, o := range m {
		o.Polled(ctx, kind, status)
	}
}

func (m Observers) Notice(ctx context.Context, msg string, attrs ...any) {
	for _, o := range m {
		o.Notice(ctx, msg, attrs...)
	}
}

// Tally counts applied actions per kind.
type Tally struct {
	NopObserver

	mu     sync.Mutex
	counts map[Kind]map[Action]int
}

// NewTally creates an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[Kind]map[Action]int)}
}

func (t *Tally) Applied(_ context.Context, kind Kind, _ string, action Action, _ []DiffEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[kind] == nil {
		t.counts[kind] = make(map[Action]int)
	}
	t.counts[kind][action]++
}

// Counts returns a copy of the counts gathered so far.
func (t *Tally) Counts() map[Kind]map[Action]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Kind]map[Action]int, len(t.counts))
	for k, byAction := range t.counts {
		m := make(map[Action]int, len(byAction))
		for a, n := range byAction {
			m[a] = n
		}
		out[k] = m
	}
	return out
}

// Count returns the number of times action was applied to kind.
func (t *Tally) Count(kind Kind, action Action) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind][action]
}

package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/phrazzld/throttleq/internal/events"
	"github.com/phrazzld/throttleq/internal/task"
)

const (
	defaultBarWidth = 30
	indent          = "       "
	clearScreen     = "\033[H\033[2J"
)

// Queue is the read side of a task queue the reporter polls.
type Queue interface {
	Total() int
	NumberQueued() int
	NumberPending() int
	NumberComplete() int
	NumberFailed() int
	BlockStatus() (bool, time.Time)
}

var _ Queue = (*task.TaskQueue)(nil)

// Reporter tracks running tasks from queue events and renders snapshots.
type Reporter struct {
	queue    Queue
	out      io.Writer
	logger   *slog.Logger
	now      func() time.Time
	barWidth int
	clear    bool

	title   lipgloss.Style
	bar     lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style

	mu       sync.Mutex
	running  []*task.Handle
	fetched  int
	failures int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithBarWidth sets the number of cells in the completion bar.
func WithBarWidth(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.barWidth = n
		}
	}
}

// WithClearScreen clears the terminal before each periodic render.
func WithClearScreen(clear bool) Option {
	return func(r *Reporter) { r.clear = clear }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// New creates a Reporter that renders queue to out. Feed it events by
// registering Observe for every kind on the queue.
func New(queue Queue, out io.Writer, logger *slog.Logger, opts ...Option) *Reporter {
	renderer := lipgloss.NewRenderer(out)
	r := &Reporter{
		queue:    queue,
		out:      out,
		logger:   logger.With("component", "progress"),
		now:      time.Now,
		barWidth: defaultBarWidth,
		title:    renderer.NewStyle().Bold(true),
		bar:      renderer.NewStyle().Foreground(lipgloss.Color("#7D56F4")),
		warning:  renderer.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		failure:  renderer.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe updates the running set from a queue event.
func (r *Reporter) Observe(rec events.Record[*task.Handle]) error {
	h := rec.Subject
	if h == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch rec.Kind {
	case events.KindStart:
		r.running = append(r.running, h)
	case events.KindComplete:
		r.fetched++
		r.remove(h)
	case events.KindFailed:
		r.failures++
		r.remove(h)
	}
	return nil
}

func (r *Reporter) remove(h *task.Handle) {
	for i, running := range r.running {
		if running == h {
			r.running = append(r.running[:i], r.running[i+1:]...)
			return
		}
	}
}

// Running returns the labels of the tasks currently running, in start order.
func (r *Reporter) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	labels := make([]string, len(r.running))
	for i, h := range r.running {
		labels[i] = label(h)
	}
	return labels
}

// Render writes one snapshot to w.
func (r *Reporter) Render(w io.Writer) error {
	_, err := io.WriteString(w, r.snapshot())
	return err
}

func (r *Reporter) snapshot() string {
	total := r.queue.Total()
	done := r.queue.NumberComplete() + r.queue.NumberFailed()
	percent := 0
	if total > 0 {
		percent = done * 100 / total
	}
	blocked, until := r.queue.BlockStatus()
	running := r.Running()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %d/%d %d%%\n",
		r.title.Render("fetching"), r.bar.Render(renderBar(percent, r.barWidth)), done, total, percent)

	b.WriteString("Currently Fetching:\n")
	switch {
	case len(running) > 0:
		for _, name := range running {
			b.WriteString(indent + name + "\n")
		}
	case blocked:
		b.WriteString(indent + r.warning.Render("BLOCKED") + "\n")
	default:
		b.WriteString(indent + "idle\n")
	}

	if blocked {
		b.WriteString(r.warning.Render("Blocked: "+r.remaining(until)) + "\n")
	} else {
		b.WriteString("All Unblocked\n")
	}

	fmt.Fprintf(&b, "Queued: %d queued | %d processing\n", r.queue.NumberQueued(), r.queue.NumberPending())
	fmt.Fprintf(&b, "Fetched: %d\n", r.queue.NumberComplete())
	failed := fmt.Sprintf("Failed: %d", r.queue.NumberFailed())
	if r.queue.NumberFailed() > 0 {
		failed = r.failure.Render(failed)
	}
	b.WriteString(failed + "\n")
	return b.String()
}

func (r *Reporter) remaining(until time.Time) string {
	if until.IsZero() {
		return "until released"
	}
	left := until.Sub(r.now())
	if left <= 0 {
		return "releasing"
	}
	secs := int(left / time.Second)
	return fmt.Sprintf("%dm %ds left", secs/60, secs%60)
}

// Run renders to the reporter's writer every interval until ctx is done,
// then renders a final snapshot.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.tick()
		case <-ticker.C:
			if err := r.tick(); err != nil {
				return err
			}
		}
	}
}

func (r *Reporter) tick() error {
	if r.clear {
		if _, err := io.WriteString(r.out, clearScreen); err != nil {
			return fmt.Errorf("failed to clear screen: %w", err)
		}
	}
	if err := r.Render(r.out); err != nil {
		return fmt.Errorf("failed to render progress: %w", err)
	}

	r.mu.Lock()
	fetched, failures := r.fetched, r.failures
	r.mu.Unlock()
	r.logger.Debug("progress",
		"total", r.queue.Total(),
		"queued", r.queue.NumberQueued(),
		"pending", r.queue.NumberPending(),
		"fetched", fetched,
		"failed", failures)
	return nil
}

func renderBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}

func label(h *task.Handle) string {
	if name := h.Name(); name != "" {
		return name
	}
	return h.ID().String()[:8]
}

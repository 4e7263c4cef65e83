package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDuration is how long a toast stays visible.
const DefaultDuration = 3 * time.Second

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Toast struct {
	Message string    `json:"message"`
	Level   Level     `json:"type"`
	ShownAt time.Time `json:"shownAt"`
}

// Notifier shows transient user-facing messages.
type Notifier interface {
	Show(message string, level Level)
}

// Toaster displays one toast at a time. Showing a new toast replaces the
// current one and cancels its pending dismissal.
type Toaster struct {
	mu       sync.Mutex
	duration time.Duration
	log      *zap.Logger

	current Toast
	visible bool
	timer   *time.Timer
	gen     uint64
}

func NewToaster(duration time.Duration, log *zap.Logger) *Toaster {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Toaster{duration: duration, log: log}
}

func (t *Toaster) Show(message string, level Level) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen

	t.current = Toast{Message: message, Level: level, ShownAt: time.Now()}
	t.visible = true
	t.timer = time.AfterFunc(t.duration, func() { t.dismiss(gen) })

	fields := []zap.Field{zap.String("type", string(level)), zap.String("message", message)}
	if level == LevelError {
		t.log.Warn("toast", fields...)
	} else {
		t.log.Info("toast", fields...)
	}
}

// Current returns the visible toast, if any.
func (t *Toaster) Current() (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.visible
}

// Close cancels the pending dismissal.
func (t *Toaster) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// dismiss hides the toast shown as generation gen. A timer that fired
// after being replaced finds a newer generation and does nothing.
func (t *Toaster) dismiss(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.visible = false
	t.timer = nil
}

package mediasaver

import (
	"context"
	"log/slog"
	"sync"
)

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by logger, or slog.Default() when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	level := slog.LevelInfo
	if notice.Level == NoticeError {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "Notice", "message", notice.Message)
}

// NoticeFeed keeps the most recent notices in memory so a client can poll them.
type NoticeFeed struct {
	mu       sync.Mutex
	notices  []Notice
	capacity int
}

// NewNoticeFeed creates a feed holding at most capacity notices.
func NewNoticeFeed(capacity int) *NoticeFeed {
	if capacity <= 0 {
		capacity = 50
	}
	return &NoticeFeed{capacity: capacity}
}

func (f *NoticeFeed) Notify(ctx context.Context, notice Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice)
	if over := len(f.notices) - f.capacity; over > 0 {
		f.notices = append([]Notice(nil), f.notices[over:]...)
	}
}

// Recent returns the retained notices, oldest first.
func (f *NoticeFeed) Recent() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notice, len(f.notices))
	copy(out, f.notices)
	return out
}

// MultiNotifier fans a notice out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, notice Notice) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, notice)
		}
	}
}

package tui

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// LogHook is a logrus hook that forwards formatted entries to the sign-in view. When the
// buffer is full the oldest line is dropped.
type LogHook struct {
	lines     chan string
	formatter log.Formatter
	mu        sync.Mutex
	levels    []log.Level
}

// NewLogHook creates a hook that buffers up to size lines and fires on info and above.
func NewLogHook(size int) *LogHook {
	if size <= 0 {
		size = 1
	}
	return &LogHook{
		lines:     make(chan string, size),
		formatter: &log.TextFormatter{DisableColors: true, FullTimestamp: true},
		levels:    []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel},
	}
}

// SetFormatter sets the formatter used to render lines.
func (h *LogHook) SetFormatter(f log.Formatter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formatter = f
}

// Levels returns the log levels this hook fires on.
func (h *LogHook) Levels() []log.Level {
	return h.levels
}

// Fire renders entry and queues it without blocking the logger.
func (h *LogHook) Fire(entry *log.Entry) error {
	h.mu.Lock()
	f := h.formatter
	h.mu.Unlock()

	line := fmt.Sprintf("[%s] %s", entry.Level, entry.Message)
	if f != nil {
		if b, err := f.Format(entry); err == nil {
			line = strings.TrimRight(string(b), "\n\r")
		}
	}

	for {
		select {
		case h.lines <- line:
			return nil
		default:
		}
		select {
		case <-h.lines:
		default:
		}
	}
}

// Lines returns the channel carrying formatted log lines.
func (h *LogHook) Lines() <-chan string {
	return h.lines
}

func containsLevel(line, level string) bool {
	return strings.Contains(line, "["+level) || strings.Contains(line, "level="+level)
}

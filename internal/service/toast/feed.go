package toast

import (
	"sync"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/internal/service"
	"portal-agent/pkg/logger"

	"github.com/google/uuid"
)

// DefaultCapacity is how many toasts the feed keeps
const DefaultCapacity = 50

// Feed is an in-memory, bounded list of recent toasts. It implements
// service.Toaster and is shared by the vetting controllers and the
// notification socket.
type Feed struct {
	mu       sync.RWMutex
	items    []domain.Toast
	capacity int
	now      func() time.Time
	logger   *logger.Logger
}

var _ service.Toaster = (*Feed)(nil)

// NewFeed creates a feed holding at most capacity toasts
func NewFeed(capacity int, logger *logger.Logger) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		items:    make([]domain.Toast, 0, capacity),
		capacity: capacity,
		now:      time.Now,
		logger:   logger,
	}
}

// Success records a success toast
func (f *Feed) Success(title, message string) { f.push(domain.ToastSuccess, title, message) }

// Error records an error toast
func (f *Feed) Error(title, message string) { f.push(domain.ToastError, title, message) }

// Info records an informational toast
func (f *Feed) Info(title, message string) { f.push(domain.ToastInfo, title, message) }

func (f *Feed) push(level domain.ToastLevel, title, message string) {
	t := domain.Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: f.now().UTC(),
	}

	f.mu.Lock()
	if len(f.items) == f.capacity {
		copy(f.items, f.items[1:])
		f.items = f.items[:len(f.items)-1]
	}
	f.items = append(f.items, t)
	f.mu.Unlock()

	f.logger.WithFields(map[string]interface{}{
		"level": level,
		"title": title,
	}).Debug("Toast")
}

// List returns the toasts oldest first
func (f *Feed) List() []domain.Toast {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.Toast, len(f.items))
	copy(out, f.items)
	return out
}

// Since returns toasts created strictly after t
func (f *Feed) Since(t time.Time) []domain.Toast {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.Toast, 0)
	for _, item := range f.items {
		if item.CreatedAt.After(t) {
			out = append(out, item)
		}
	}
	return out
}

// Clear drops all toasts
func (f *Feed) Clear() {
	f.mu.Lock()
	f.items = f.items[:0]
	f.mu.Unlock()
}

package notify

import (
	"sync"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/pkg/logger"
)

// DefaultDesktopCapacity is how many desktop notifications are retained
const DefaultDesktopCapacity = 20

// DesktopCenter holds native notifications and the permission to raise
// them. Notifications that share a tag replace each other.
type DesktopCenter struct {
	mu         sync.RWMutex
	permission domain.NotificationPermission
	items      []domain.DesktopNotification
	capacity   int
	now        func() time.Time
	logger     *logger.Logger
}

// NewDesktopCenter creates a center with an initial permission
func NewDesktopCenter(permission domain.NotificationPermission, logger *logger.Logger) *DesktopCenter {
	switch permission {
	case domain.PermissionGranted, domain.PermissionDenied:
	default:
		permission = domain.PermissionDefault
	}
	return &DesktopCenter{
		permission: permission,
		capacity:   DefaultDesktopCapacity,
		now:        time.Now,
		logger:     logger,
	}
}

// Permission returns the current permission
func (d *DesktopCenter) Permission() domain.NotificationPermission {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.permission
}

// RequestPermission records the operator's answer to the one-time prompt.
// Once granted or denied the decision sticks and later requests are no-ops.
func (d *DesktopCenter) RequestPermission(answer domain.NotificationPermission) domain.NotificationPermission {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.permission != domain.PermissionDefault {
		return d.permission
	}
	if answer == domain.PermissionGranted || answer == domain.PermissionDenied {
		d.permission = answer
		d.logger.WithField("permission", answer).Info("Desktop notification permission decided")
	}
	return d.permission
}

// Show raises a notification when permission is granted and reports
// whether it was shown
func (d *DesktopCenter) Show(tag, title, body string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.permission != domain.PermissionGranted {
		return false
	}

	n := domain.DesktopNotification{Tag: tag, Title: title, Body: body, CreatedAt: d.now().UTC()}
	for i, existing := range d.items {
		if tag != "" && existing.Tag == tag {
			d.items = append(d.items[:i], d.items[i+1:]...)
			break
		}
	}
	if len(d.items) == d.capacity {
		d.items = d.items[1:]
	}
	d.items = append(d.items, n)
	return true
}

// List returns the visible notifications oldest first
func (d *DesktopCenter) List() []domain.DesktopNotification {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.DesktopNotification, len(d.items))
	copy(out, d.items)
	return out
}

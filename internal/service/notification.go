package service

import (
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
)

// notificationTTL is how long a banner stays up before auto-dismissing.
const notificationTTL = 4 * time.Second

// Presenter owns the per-session transient notification. One banner at a
// time; a new one replaces the previous, manual dismissal beats the timer.
// The clock is injectable so tests can drive auto-dismissal.
type Presenter struct {
	ttl time.Duration
	now func() time.Time
}

// NewPresenter creates a presenter with the standard auto-dismiss timeout.
func NewPresenter() *Presenter {
	return &Presenter{ttl: notificationTTL, now: time.Now}
}

// Show builds the replacement notification for a session.
func (p *Presenter) Show(kind, title, description string) *domain.Notification {
	return &domain.Notification{
		Kind:        kind,
		Title:       title,
		Description: description,
		ExpiresAt:   p.now().Add(p.ttl),
	}
}

// Current returns n if it is still active, nil once expired.
func (p *Presenter) Current(n *domain.Notification) *domain.Notification {
	if n.Active(p.now()) {
		return n
	}
	return nil
}

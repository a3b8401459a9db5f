package mockbackend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Delivery is one passcode handed to a user.
type Delivery struct {
	Username  string
	SessionID string
	Code      string
	ExpiresAt time.Time
}

// Outbox stands in for the e-mail channel passcodes are sent through.
type Outbox interface {
	Deliver(ctx context.Context, d Delivery) error
}

// LogOutbox writes passcodes to the log. Development use only.
type LogOutbox struct {
	Logger *slog.Logger
}

func (o LogOutbox) Deliver(ctx context.Context, d Delivery) error {
	o.Logger.InfoContext(ctx, "passcode issued",
		slog.String("username", d.Username),
		slog.String("session_id", d.SessionID),
		slog.String("code", d.Code),
		slog.Time("expires_at", d.ExpiresAt),
	)
	return nil
}

// RecordingOutbox keeps every delivery in memory.
type RecordingOutbox struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (o *RecordingOutbox) Deliver(_ context.Context, d Delivery) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliveries = append(o.deliveries, d)
	return nil
}

// Last returns the most recent delivery to username.
func (o *RecordingOutbox) Last(username string) (Delivery, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := len(o.deliveries) - 1; i >= 0; i-- {
		if o.deliveries[i].Username == username {
			return o.deliveries[i], true
		}
	}
	return Delivery{}, false
}

// Count returns how many passcodes were delivered in total.
func (o *RecordingOutbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.deliveries)
}

// Package notify surfaces user-visible events: lifecycle action failures,
// terminal poll outcomes, and audit results. Transient poll errors are
// never routed here; they recover silently.
package notify

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Notification is a user-visible event.
type Notification struct {
	Title   string
	Message string
	Level   Level
	ItemID  string // optional work item reference
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Send(n Notification) error
}

// Multi fans a notification out to several notifiers.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a notifier that sends to all provided notifiers. Errors
// from individual sinks do not stop the others; the last error wins.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Send sends the notification to every sink.
func (m *Multi) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Noop discards notifications (testing, or notifications disabled).
type Noop struct{}

func (Noop) Send(Notification) error { return nil }

// Error is a convenience constructor for action-failure notifications.
func Error(title, message, itemID string) Notification {
	return Notification{Title: title, Message: message, Level: LevelError, ItemID: itemID}
}

// Success is a convenience constructor for terminal-success notifications.
func Success(title, message, itemID string) Notification {
	return Notification{Title: title, Message: message, Level: LevelSuccess, ItemID: itemID}
}

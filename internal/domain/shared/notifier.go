package shared

import "context"

// Notification is one outbound message rendered from a template
type Notification struct {
	Recipient string
	Template  string
	Variables map[string]string
}

// Notifier delivers notifications asynchronously. Callers invoke it only
// after the authoritative state transition commits; a failed delivery is
// logged and retried by the caller's policy, never rolled back into booking
// state.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// Package notify fans list change notices out to push platforms. Delivery is
// best effort: callers are never blocked and never see an error.
package notify

import "context"

// Notifier is told about every committed item mutation.
type Notifier interface {
	Notify(listID string, latestRev int64)
}

// Platform delivers one notice over one channel. A platform that is not
// configured returns nil without sending.
type Platform interface {
	Name() string
	Send(ctx context.Context, listID string, latestRev int64) error
}

// Nop drops every notice.
type Nop struct{}

func (Nop) Notify(string, int64) {}

// NonBlocking marks a platform whose Send never waits on I/O. The
// dispatcher calls it inline so a busy pool cannot drop its notices.
type NonBlocking interface {
	NonBlocking()
}

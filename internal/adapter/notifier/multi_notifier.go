package notifier

import (
	"context"

	"github.com/rl1809/storefront/internal/port"
)

// Multi fans a notification out to every configured sink.
type Multi []port.Notifier

func (m Multi) Notify(ctx context.Context, kind port.NotificationKind, message string) {
	for _, n := range m {
		n.Notify(ctx, kind, message)
	}
}

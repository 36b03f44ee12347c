package notifier

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/port"
)

// LogNotifier writes notifications to the structured log. It is the default
// sink and always available.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, kind port.NotificationKind, message string) {
	entry := n.logger.WithField("kind", string(kind))
	switch kind {
	case port.NotifyError:
		entry.Error(message)
	case port.NotifyWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}

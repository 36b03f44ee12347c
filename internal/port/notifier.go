package port

import "context"

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
	NotifyInfo    NotificationKind = "info"
)

type Notifier interface {
	// Notify reports an outcome; fire-and-forget, implementations must not block the caller
	Notify(ctx context.Context, kind NotificationKind, message string)
}

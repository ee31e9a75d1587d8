// Package notify defines the user-visible notification surface (the toast
// analog). The core reports enqueue acknowledgments and drain summaries
// through it; presentation is the caller's concern.
package notify

import "github.com/fieldops/fieldsync/internal/logging"

// Level classifies a notification for presentation purposes.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier receives user-visible messages.
type Notifier interface {
	Notify(message string, level Level)
}

// Func adapts a function to the Notifier interface.
type Func func(message string, level Level)

// Notify implements Notifier.
func (f Func) Notify(message string, level Level) {
	f(message, level)
}

// LogNotifier writes notifications to the structured log. It is the default
// surface for the headless agent.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(message string, level Level) {
	ctx := map[string]interface{}{"notification_level": string(level)}
	switch level {
	case LevelWarning, LevelError:
		logging.Warn(message, ctx)
	default:
		logging.Info(message, ctx)
	}
}

// Discard drops all notifications.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(string, Level) {}

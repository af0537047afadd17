package consolidate

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is one terminal-state message for the user. Link, when set,
// points at the transaction on a block explorer.
type Notification struct {
	Title       string
	Description string
	Link        string
	Duration    time.Duration
}

// Notifier delivers terminal-state notifications. The UI swaps in its toast
// system; headless runs use the log-backed implementation.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(notification Notification) {
	fields := logrus.Fields{"title": notification.Title}
	if notification.Link != "" {
		fields["link"] = notification.Link
	}
	n.logger.WithFields(fields).Info(notification.Description)
}

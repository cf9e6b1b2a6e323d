package orchestrator

import (
	"log/slog"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
)

// Notification is the single user-visible message for a job reaching a
// terminal status.
type Notification struct {
	ClientKey string
	ServerID  string
	FileName  string
	Status    domain.Status
	Message   string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	attrs := []any{
		slog.String("file_name", n.FileName),
		slog.String("client_key", n.ClientKey),
		slog.String("server_id", n.ServerID),
		slog.String("status", n.Status.Info().Label),
	}
	if n.Status == domain.StatusFailed {
		l.Logger.Error(n.Message, attrs...)
		return
	}
	l.Logger.Info(n.Message, attrs...)
}

func notificationFor(j domain.Job) Notification {
	n := Notification{
		ClientKey: j.ClientKey,
		ServerID:  j.ServerID,
		FileName:  j.FileName,
		Status:    j.Status,
	}
	switch j.Status {
	case domain.StatusFinished:
		n.Message = "BoQ generated for " + j.FileName
	case domain.StatusFailed:
		n.Message = "Processing failed for " + j.FileName
		if j.Error != "" {
			n.Message += ": " + j.Error
		}
	}
	return n
}

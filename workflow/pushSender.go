package workflow

import (
	"context"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/sirupsen/logrus"
)

// PushPayload is what the recipient's device shows.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Url   string `json:"url"`
}

// PushSender delivers one payload to one subscription and returns a transport message id.
type PushSender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload PushPayload) (string, error)
}

// PubSubSender hands the message to the push gateway through NOTIFICATION_TOPIC.
type PubSubSender struct{}

func (PubSubSender) Send(ctx context.Context, sub *models.PushSubscription, payload PushPayload) (string, error) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	return config.PublishPushNotification(ctx, config.PushMessage{
		CompanyId:     sub.CompanyId,
		RecipientId:   sub.UserId,
		Endpoint:      sub.Endpoint,
		P256dh:        sub.P256dh,
		Auth:          sub.Auth,
		Title:         payload.Title,
		Body:          payload.Body,
		Url:           payload.Url,
		CorrelationId: correlationId,
	})
}

// LogSender only logs. Used locally and when no topic is configured.
type LogSender struct {
	Logger *logrus.Logger
}

func (s LogSender) Send(ctx context.Context, sub *models.PushSubscription, payload PushPayload) (string, error) {
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"field":        "LogSender",
			"company_id":   sub.CompanyId,
			"recipient_id": sub.UserId,
			"url":          payload.Url,
		}).Info(payload.Title + ": " + payload.Body)
	}
	return "", nil
}

// NewPushSender picks the transport from NOTIFICATION_SENDER.
func NewPushSender(logger *logrus.Logger) PushSender {
	if config.NotificationSender() == "pubsub" {
		return PubSubSender{}
	}
	return LogSender{Logger: logger}
}

// Package events pushes lightweight notification events to Redis so UI
// clients can live-update their feeds. Publishing is best-effort: a Redis
// failure never affects the committed notification.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cosimani/rua-api-sub001/internal/common/logger"
	"github.com/cosimani/rua-api-sub001/internal/models"
)

const channelPrefix = "rua:notificaciones:"

// Event is the payload published per created notification.
type Event struct {
	EventoID       string    `json:"evento_id"`
	Login          string    `json:"login"`
	NotificacionID int64     `json:"notificacion_id"`
	Mensaje        string    `json:"mensaje"`
	Fecha          time.Time `json:"fecha"`
}

type Publisher struct {
	client *redis.Client
	logger logger.Logger
}

func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: log.WithFields(map[string]interface{}{"componente": "eventos"}),
	}
}

// NotificationCreated publishes to the recipient's channel. Errors are
// logged and swallowed.
func (p *Publisher) NotificationCreated(ctx context.Context, n *models.Notification) {
	if p == nil || p.client == nil {
		return
	}

	payload, err := json.Marshal(Event{
		EventoID:       uuid.New().String(),
		Login:          n.Login,
		NotificacionID: n.ID,
		Mensaje:        n.Mensaje,
		Fecha:          n.Fecha,
	})
	if err != nil {
		return
	}

	if err := p.client.Publish(ctx, channelPrefix+n.Login, payload).Err(); err != nil {
		p.logger.Warn("event publish failed", map[string]interface{}{
			"login": n.Login,
			"error": err.Error(),
		})
	}
}

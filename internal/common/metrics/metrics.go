package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notificaciones_creadas_total",
			Help: "Total number of in-app notifications created",
		},
		[]string{"alcance"}, // "usuario" or "rol"
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mensajes_enviados_total",
			Help: "Total number of outbound channel message attempts",
		},
		[]string{"canal", "estado"},
	)

	MarkSeenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notificaciones_vistas_total",
			Help: "Total number of mark-as-seen operations",
		},
		[]string{"modo"}, // "individual" or "grupal"
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "envio_duracion_segundos",
			Help: "Duration of outbound channel sends in seconds",
		},
		[]string{"canal"},
	)
)

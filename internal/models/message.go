package models

import "time"

// Channel identifies an outbound delivery channel.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Delivery statuses recorded in the message ledger.
type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "enviado"
	StatusError   DeliveryStatus = "error"
	StatusNotSent DeliveryStatus = "no_enviado"
)

// MessageRecord is one attempt to deliver content through an external
// channel. Rows are append-only: the ledger stages them and never updates
// or deletes.
type MessageRecord struct {
	ID         int64                  `json:"mensaje_id"`
	Canal      Channel                `json:"tipo"`
	Remitente  string                 `json:"remitente"`
	Login      string                 `json:"login_destino"`
	Destino    string                 `json:"destino"`
	Asunto     string                 `json:"asunto,omitempty"`
	Contenido  string                 `json:"contenido"`
	Estado     DeliveryStatus         `json:"estado"`
	ExternalID string                 `json:"mensaje_externo_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Fecha      time.Time              `json:"fecha"`
}

// Package ledger appends one immutable record per outbound message attempt.
// The ledger stages the insert on the caller's transaction and never commits:
// the surrounding operation decides whether the notification and its delivery
// log land together.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cosimani/rua-api-sub001/internal/common/errors"
	"github.com/cosimani/rua-api-sub001/internal/models"
)

const (
	// MaxContentRunes is the largest content length stored verbatim.
	MaxContentRunes = 4500

	// TruncationMarker is appended whenever content is cut.
	TruncationMarker = "... [TRUNCADO]"

	// rawMetadataKey wraps metadata values that could not be parsed as a
	// structured document.
	rawMetadataKey = "raw"
)

// Execer is satisfied by both *sql.Tx and *sql.DB so the ledger can stage
// writes inside the caller's transaction.
type Execer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RecordParams describes one delivery attempt.
type RecordParams struct {
	Canal      models.Channel
	Remitente  string
	Login      string
	Destino    string
	Asunto     string
	Contenido  string
	Estado     models.DeliveryStatus
	ExternalID string
	Metadata   interface{} // map, JSON string, or any scalar
}

type Ledger struct{}

func New() *Ledger {
	return &Ledger{}
}

// Record stages one append-only row. Content longer than MaxContentRunes is
// truncated with the marker, never rejected. Metadata is always stored as a
// structured document.
func (l *Ledger) Record(ctx context.Context, ex Execer, p RecordParams) (*models.MessageRecord, error) {
	contenido := TruncateContent(p.Contenido)
	metadata := CoerceMetadata(p.Metadata)

	var metadataJSON interface{}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		metadataJSON = raw
	}

	var asunto interface{}
	if p.Asunto != "" {
		asunto = p.Asunto
	}
	var externalID interface{}
	if p.ExternalID != "" {
		externalID = p.ExternalID
	}

	rec := &models.MessageRecord{
		Canal:      p.Canal,
		Remitente:  p.Remitente,
		Login:      p.Login,
		Destino:    p.Destino,
		Asunto:     p.Asunto,
		Contenido:  contenido,
		Estado:     p.Estado,
		ExternalID: p.ExternalID,
		Metadata:   metadata,
	}

	err := ex.QueryRowContext(ctx, `
		INSERT INTO mensajes_enviados
			(tipo, remitente, login_destino, destino, asunto, contenido, estado, mensaje_externo_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING mensaje_id, fecha`,
		string(p.Canal), p.Remitente, p.Login, p.Destino, asunto,
		contenido, string(p.Estado), externalID, metadataJSON,
	).Scan(&rec.ID, &rec.Fecha)
	if err != nil {
		return nil, fmt.Errorf("stage message record: %w", errors.NewPersistenceError("insert mensajes_enviados", err))
	}

	return rec, nil
}

// TruncateContent cuts content exceeding MaxContentRunes and appends the
// truncation marker. Lengths are measured in runes, not bytes.
func TruncateContent(contenido string) string {
	runes := []rune(contenido)
	if len(runes) <= MaxContentRunes {
		return contenido
	}
	return string(runes[:MaxContentRunes+1]) + TruncationMarker
}

// CoerceMetadata guarantees a structured document. Strings get one JSON-parse
// attempt; anything that is not an object ends up wrapped under rawMetadataKey.
func CoerceMetadata(metadata interface{}) map[string]interface{} {
	switch v := metadata.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return v
	case string:
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			return parsed
		}
		return map[string]interface{}{rawMetadataKey: v}
	default:
		return map[string]interface{}{rawMetadataKey: fmt.Sprintf("%v", v)}
	}
}

package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosimani/rua-api-sub001/internal/common/errors"
	"github.com/cosimani/rua-api-sub001/internal/models"
)

// ==========================
// Truncation Tests
// ==========================

func TestTruncateContent(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		truncate bool
	}{
		{name: "short content untouched", length: 10, truncate: false},
		{name: "exactly at limit untouched", length: MaxContentRunes, truncate: false},
		{name: "one over limit truncated", length: MaxContentRunes + 1, truncate: true},
		{name: "far over limit truncated", length: 20000, truncate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Repeat("x", tt.length)
			got := TruncateContent(content)

			if !tt.truncate {
				assert.Equal(t, content, got)
				return
			}

			gotRunes := []rune(got)
			assert.Len(t, gotRunes, MaxContentRunes+1+len([]rune(TruncationMarker)))
			assert.True(t, strings.HasSuffix(got, TruncationMarker))
		})
	}
}

func TestTruncateContent_MultibyteRunes(t *testing.T) {
	// Lengths are measured in runes, so multibyte content over the limit
	// must still come out at the same rune length.
	content := strings.Repeat("ñ", MaxContentRunes+500)
	got := TruncateContent(content)

	assert.Len(t, []rune(got), MaxContentRunes+1+len([]rune(TruncationMarker)))
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
}

// ==========================
// Metadata Coercion Tests
// ==========================

func TestCoerceMetadata(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected map[string]interface{}
	}{
		{
			name:     "nil stays nil",
			input:    nil,
			expected: nil,
		},
		{
			name:     "structured document passes through",
			input:    map[string]interface{}{"carpeta": "5"},
			expected: map[string]interface{}{"carpeta": "5"},
		},
		{
			name:     "JSON string parses into document",
			input:    `{"convocatoria": 12}`,
			expected: map[string]interface{}{"convocatoria": float64(12)},
		},
		{
			name:     "unparseable string wrapped under raw key",
			input:    "no es json",
			expected: map[string]interface{}{"raw": "no es json"},
		},
		{
			name:     "JSON array is not a document, wrapped",
			input:    `[1, 2, 3]`,
			expected: map[string]interface{}{"raw": `[1, 2, 3]`},
		},
		{
			name:     "scalar wrapped under raw key",
			input:    42,
			expected: map[string]interface{}{"raw": "42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceMetadata(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// ==========================
// Record Staging Tests
// ==========================

func TestLedger_Record_StagesWithoutCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fecha := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO mensajes_enviados`).
		WillReturnRows(sqlmock.NewRows([]string{"mensaje_id", "fecha"}).AddRow(int64(7), fecha))
	// No ExpectCommit: the ledger must leave the transaction open.

	tx, err := db.Begin()
	require.NoError(t, err)

	rec, err := New().Record(context.Background(), tx, RecordParams{
		Canal:      models.ChannelWhatsApp,
		Remitente:  "123456",
		Login:      "ana123",
		Destino:    "+5493764000000",
		Contenido:  "Nuevo caso",
		Estado:     models.StatusSent,
		ExternalID: "wamid.ABC",
		Metadata:   `{"template": "caso_nuevo"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, fecha, rec.Fecha)
	assert.Equal(t, models.ChannelWhatsApp, rec.Canal)
	assert.Equal(t, map[string]interface{}{"template": "caso_nuevo"}, rec.Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Record_TruncatesLongContent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO mensajes_enviados`).
		WillReturnRows(sqlmock.NewRows([]string{"mensaje_id", "fecha"}).AddRow(int64(1), time.Now()))

	tx, err := db.Begin()
	require.NoError(t, err)

	rec, err := New().Record(context.Background(), tx, RecordParams{
		Canal:     models.ChannelEmail,
		Remitente: "noreply@rua.gob.ar",
		Login:     "ana123",
		Destino:   "ana@example.com",
		Contenido: strings.Repeat("a", 9000),
		Estado:    models.StatusSent,
	})
	require.NoError(t, err)

	assert.Len(t, []rune(rec.Contenido), MaxContentRunes+1+len([]rune(TruncationMarker)))
	assert.True(t, strings.HasSuffix(rec.Contenido, TruncationMarker))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Record_InsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO mensajes_enviados`).
		WillReturnError(assert.AnError)

	tx, err := db.Begin()
	require.NoError(t, err)

	_, err = New().Record(context.Background(), tx, RecordParams{
		Canal:     models.ChannelWhatsApp,
		Login:     "ana123",
		Contenido: "hola",
		Estado:    models.StatusError,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePersistenceFailed, errors.CodeOf(err))
}

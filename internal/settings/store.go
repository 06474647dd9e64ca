// Package settings exposes the key/value configuration table consumed by the
// credential resolver. Values are nullable; a NULL or missing row reads as
// absent, not as an error.
package settings

import (
	"context"
	"database/sql"
	"fmt"
)

// Store reads the configuraciones table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for clave, or "" with found=false when the row is
// absent or its value is NULL.
func (s *Store) Get(ctx context.Context, clave string) (string, bool, error) {
	var valor sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT valor FROM configuraciones WHERE clave = $1`, clave).Scan(&valor)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings lookup for %q: %w", clave, err)
	}
	if !valor.Valid || valor.String == "" {
		return "", false, nil
	}
	return valor.String, true, nil
}

// Package directory provides the read-only user/role queries the fan-out
// path depends on. Writes to these tables belong to the CRUD layer.
package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cosimani/rua-api-sub001/internal/common/errors"
	"github.com/cosimani/rua-api-sub001/internal/models"
)

// Querier is satisfied by *sql.DB and *sql.Tx so lookups can run inside the
// orchestrator's transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Directory struct {
	db *sql.DB
}

func New(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// GetUser loads contact data and display name for a login.
func (d *Directory) GetUser(ctx context.Context, login string) (*models.Usuario, error) {
	return getUser(ctx, d.db, login)
}

// GetUserTx is GetUser inside an open transaction.
func (d *Directory) GetUserTx(ctx context.Context, tx *sql.Tx, login string) (*models.Usuario, error) {
	return getUser(ctx, tx, login)
}

func getUser(ctx context.Context, q Querier, login string) (*models.Usuario, error) {
	var u models.Usuario
	var nombre, apellido, celular, mail sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT login, nombre, apellido, celular, mail
		FROM usuarios
		WHERE login = $1`, login).Scan(&u.Login, &nombre, &apellido, &celular, &mail)
	if err == sql.ErrNoRows {
		return nil, errors.NewUserNotFoundError(login)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %q: %w", login, err)
	}
	u.Nombre = nombre.String
	u.Apellido = apellido.String
	u.Celular = celular.String
	u.Mail = mail.String
	return &u, nil
}

// LoginsByRole resolves every login holding the named role, via the
// usuario_rol membership relation. Order follows the membership rows.
func (d *Directory) LoginsByRole(ctx context.Context, tx *sql.Tx, role string) ([]string, error) {
	var q Querier = d.db
	if tx != nil {
		q = tx
	}

	rows, err := q.QueryContext(ctx, `
		SELECT ur.login
		FROM usuario_rol ur
		JOIN roles r ON r.rol_id = ur.rol_id
		WHERE r.descripcion = $1`, role)
	if err != nil {
		return nil, fmt.Errorf("resolve role %q: %w", role, err)
	}
	defer rows.Close()

	var logins []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		logins = append(logins, login)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role members: %w", err)
	}
	return logins, nil
}

// RolesOf returns the role descriptions held by a login.
func (d *Directory) RolesOf(ctx context.Context, login string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT r.descripcion
		FROM usuario_rol ur
		JOIN roles r ON r.rol_id = ur.rol_id
		WHERE ur.login = $1`, login)
	if err != nil {
		return nil, fmt.Errorf("resolve roles of %q: %w", login, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var descripcion string
		if err := rows.Scan(&descripcion); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, descripcion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// Package notification owns the in-app notification rows: creation (single
// recipient and role fan-out), read/unread state, and paginated listing.
//
// Commit discipline: the create operations stage rows on the transaction the
// caller hands in and never commit; the orchestrator is the one boundary
// that does. MarkSeen is invoked directly by the HTTP layer and therefore
// owns its own transaction.
package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cosimani/rua-api-sub001/internal/common/errors"
	"github.com/cosimani/rua-api-sub001/internal/common/logger"
	"github.com/cosimani/rua-api-sub001/internal/common/metrics"
	"github.com/cosimani/rua-api-sub001/internal/models"
)

// RoleResolver expands a role name into its member logins.
type RoleResolver interface {
	LoginsByRole(ctx context.Context, tx *sql.Tx, role string) ([]string, error)
}

type Store struct {
	db     *sql.DB
	roles  RoleResolver
	logger logger.Logger
}

func NewStore(db *sql.DB, roles RoleResolver, log logger.Logger) *Store {
	return &Store{
		db:     db,
		roles:  roles,
		logger: log.WithFields(map[string]interface{}{"componente": "notificaciones"}),
	}
}

// CreateParams carries the recipient-independent part of a notification.
type CreateParams struct {
	Mensaje string
	Link    string
	Data    map[string]interface{}
	Tipo    string
	Actor   string
}

// Result is the envelope mutating operations hand back to the HTTP layer.
type Result struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Creadas      int    `json:"creadas,omitempty"`
	Actualizadas int64  `json:"actualizadas,omitempty"`
}

// Page is one page of notifications plus the counters the UI shows.
type Page struct {
	Success        bool                  `json:"success"`
	Message        string                `json:"message,omitempty"`
	Total          int                   `json:"total"`
	NoVistas       int                   `json:"no_vistas"`
	Notificaciones []models.Notification `json:"notificaciones"`
}

// CreateForUser stages one notification row. The identifier and timestamp
// come back from the database; nothing is committed here.
func (s *Store) CreateForUser(ctx context.Context, tx *sql.Tx, login string, p CreateParams) (*models.Notification, error) {
	var dataJSON interface{}
	if p.Data != nil {
		raw, err := json.Marshal(p.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal data_json: %w", err)
		}
		dataJSON = raw
	}
	var tipo interface{}
	if p.Tipo != "" {
		tipo = p.Tipo
	}
	var actor interface{}
	if p.Actor != "" {
		actor = p.Actor
	}

	n := &models.Notification{
		Login:   login,
		Mensaje: p.Mensaje,
		Link:    p.Link,
		Data:    p.Data,
		Tipo:    p.Tipo,
		Actor:   p.Actor,
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO notificaciones (login, mensaje, link, data_json, tipo_mensaje, login_que_notifico)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING notificacion_id, fecha`,
		login, p.Mensaje, p.Link, dataJSON, tipo, actor,
	).Scan(&n.ID, &n.Fecha)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", errors.NewPersistenceError("insert notificaciones", err))
	}

	return n, nil
}

// CreateForRole stages one row per member of the role, in membership order,
// and returns the created rows. A resolution or insert failure surfaces as
// an error so the caller rolls back the whole batch. Zero members is a
// no-op, not an error.
func (s *Store) CreateForRole(ctx context.Context, tx *sql.Tx, role string, p CreateParams) ([]*models.Notification, error) {
	logins, err := s.roles.LoginsByRole(ctx, tx, role)
	if err != nil {
		return nil, err
	}
	if len(logins) == 0 {
		s.logger.Info("role has no members, nothing to create", map[string]interface{}{
			"rol": role,
		})
		return nil, nil
	}

	created := make([]*models.Notification, 0, len(logins))
	for _, login := range logins {
		n, err := s.CreateForUser(ctx, tx, login, p)
		if err != nil {
			return nil, fmt.Errorf("fan-out to %q: %w", login, err)
		}
		created = append(created, n)
	}

	return created, nil
}

// MarkSeen transitions unseen -> seen. An "adoptante" caller only dismisses
// their own row; any other caller dismisses the whole broadcast group: every
// unseen row sharing the same mensaje, link, tipo and fecha, across all
// recipients. Expected failures come back inside the Result.
func (s *Store) MarkSeen(ctx context.Context, login string, id int64, callerRoles []string) *Result {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.failure("mark_seen begin", err)
	}
	defer tx.Rollback()

	var mensaje string
	var link sql.NullString
	var tipo sql.NullString
	var fecha time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT mensaje, link, tipo_mensaje, fecha
		FROM notificaciones
		WHERE notificacion_id = $1 AND login = $2`, id, login).
		Scan(&mensaje, &link, &tipo, &fecha)
	if err == sql.ErrNoRows {
		s.logger.Warn("store operation rejected", map[string]interface{}{
			"operacion": "mark_seen",
			"error":     errors.NewNotificationNotFoundError(login, id).Error(),
		})
		return &Result{Success: false, Message: "Notificación no encontrada"}
	}
	if err != nil {
		return s.failure("mark_seen load", err)
	}

	var res sql.Result
	modo := "grupal"
	if hasRole(callerRoles, models.RoleAdoptante) {
		modo = "individual"
		res, err = tx.ExecContext(ctx, `
			UPDATE notificaciones
			SET vista = TRUE
			WHERE notificacion_id = $1 AND login = $2`, id, login)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE notificaciones
			SET vista = TRUE
			WHERE vista = FALSE
			  AND mensaje = $1
			  AND link IS NOT DISTINCT FROM $2
			  AND tipo_mensaje IS NOT DISTINCT FROM $3
			  AND fecha = $4`, mensaje, link, tipo, fecha)
	}
	if err != nil {
		return s.failure("mark_seen update", err)
	}

	updated, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return s.failure("mark_seen commit", err)
	}

	metrics.MarkSeenTotal.WithLabelValues(modo).Inc()
	return &Result{Success: true, Message: "Notificación marcada como vista", Actualizadas: updated}
}

// ListForUser returns one page for the recipient. With FilterAll the page is
// ordered unseen-first then newest-first; with the seen/unseen filters it is
// newest-first. Total follows the filter; NoVistas never does.
func (s *Store) ListForUser(ctx context.Context, login, filtro string, page, limit int) *Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	var seenCond string
	var orderBy string
	switch filtro {
	case models.FilterAll, "":
		seenCond = ""
		orderBy = "n.vista ASC, n.fecha DESC"
	case models.FilterSeen:
		seenCond = "AND n.vista = TRUE"
		orderBy = "n.fecha DESC"
	case models.FilterUnseen:
		seenCond = "AND n.vista = FALSE"
		orderBy = "n.fecha DESC"
	default:
		s.logger.Warn("store operation rejected", map[string]interface{}{
			"operacion": "list",
			"error":     errors.NewInvalidFilterError(filtro).Error(),
		})
		return &Page{Success: false, Message: fmt.Sprintf("Filtro inválido: %s", filtro)}
	}

	var total int
	countQuery := fmt.Sprintf(
		`SELECT COUNT(*) FROM notificaciones n WHERE n.login = $1 %s`, seenCond)
	if err := s.db.QueryRowContext(ctx, countQuery, login).Scan(&total); err != nil {
		return s.pageFailure("list count", err)
	}

	var noVistas int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notificaciones n WHERE n.login = $1 AND n.vista = FALSE`, login).
		Scan(&noVistas)
	if err != nil {
		return s.pageFailure("list unseen count", err)
	}

	offset := (page - 1) * limit
	listQuery := fmt.Sprintf(`
		SELECT n.notificacion_id, n.fecha, n.mensaje, n.link, n.data_json,
		       n.tipo_mensaje, n.vista, n.login_que_notifico, u.nombre, u.apellido
		FROM notificaciones n
		LEFT JOIN usuarios u ON u.login = n.login_que_notifico
		WHERE n.login = $1 %s
		ORDER BY %s
		LIMIT $2 OFFSET $3`, seenCond, orderBy)

	rows, err := s.db.QueryContext(ctx, listQuery, login, limit, offset)
	if err != nil {
		return s.pageFailure("list query", err)
	}
	defer rows.Close()

	items := make([]models.Notification, 0, limit)
	for rows.Next() {
		var n models.Notification
		var dataJSON []byte
		var link, tipo, actor, nombre, apellido sql.NullString
		if err := rows.Scan(&n.ID, &n.Fecha, &n.Mensaje, &link, &dataJSON,
			&tipo, &n.Vista, &actor, &nombre, &apellido); err != nil {
			return s.pageFailure("list scan", err)
		}
		n.Login = login
		n.Link = link.String
		n.Tipo = tipo.String
		n.Actor = actor.String
		if len(dataJSON) > 0 {
			_ = json.Unmarshal(dataJSON, &n.Data)
		}
		n.ActorName = actorDisplayName(actor, nombre, apellido)
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return s.pageFailure("list iterate", err)
	}

	return &Page{
		Success:        true,
		Total:          total,
		NoVistas:       noVistas,
		Notificaciones: items,
	}
}

// actorDisplayName enriches a row with who triggered it. No actor means the
// system did; an actor without a directory entry falls back to the login.
func actorDisplayName(actor, nombre, apellido sql.NullString) string {
	if !actor.Valid || actor.String == "" {
		return models.SystemActorName
	}
	u := models.Usuario{Nombre: nombre.String, Apellido: apellido.String}
	if full := u.NombreCompleto(); full != "" {
		return full
	}
	return actor.String
}

func (s *Store) failure(operation string, err error) *Result {
	s.logger.Error("store operation failed", map[string]interface{}{
		"operacion": operation,
		"error":     errors.NewPersistenceError(operation, err).Error(),
	})
	return &Result{Success: false, Message: "Error de base de datos"}
}

func (s *Store) pageFailure(operation string, err error) *Page {
	s.logger.Error("store operation failed", map[string]interface{}{
		"operacion": operation,
		"error":     errors.NewPersistenceError(operation, err).Error(),
	})
	return &Page{Success: false, Message: "Error de base de datos"}
}

func hasRole(roles []string, wanted string) bool {
	for _, r := range roles {
		if r == wanted {
			return true
		}
	}
	return false
}

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosimani/rua-api-sub001/internal/common/config"
	"github.com/cosimani/rua-api-sub001/internal/common/database"
	"github.com/cosimani/rua-api-sub001/internal/common/logger"
	"github.com/cosimani/rua-api-sub001/internal/directory"
	"github.com/cosimani/rua-api-sub001/internal/ledger"
	"github.com/cosimani/rua-api-sub001/internal/models"
	"github.com/cosimani/rua-api-sub001/internal/notification"
	"github.com/cosimani/rua-api-sub001/internal/orchestrator"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openDB connects to the local test database, skipping the whole run when
// PostgreSQL is not reachable.
func openDB(t *testing.T) *sql.DB {
	t.Helper()

	port, _ := strconv.Atoi(envOr("E2E_DB_PORT", "5432"))
	cfg := config.PostgresConfig{
		Host:           envOr("E2E_DB_HOST", "localhost"),
		Port:           port,
		Database:       envOr("E2E_DB_NAME", "postgres"),
		User:           envOr("E2E_DB_USER", "postgres"),
		Password:       envOr("E2E_DB_PASSWORD", "postgres"),
		MaxConnections: 5,
		MaxIdle:        2,
		SSLMode:        "disable",
	}

	client, err := database.NewPostgres(cfg)
	if err != nil {
		t.Skipf("PostgreSQL not available, skipping e2e: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		t.Skipf("PostgreSQL not available, skipping e2e: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client.GetDB()
}

// ==========================
// Schema Setup + Test Data
// ==========================

func createSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS usuarios (
			login VARCHAR(100) PRIMARY KEY,
			nombre VARCHAR(100),
			apellido VARCHAR(100),
			celular VARCHAR(50),
			mail VARCHAR(255)
		)`,
		`CREATE TABLE IF NOT EXISTS roles (
			rol_id SERIAL PRIMARY KEY,
			descripcion VARCHAR(100) UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS usuario_rol (
			login VARCHAR(100) NOT NULL,
			rol_id INTEGER NOT NULL,
			PRIMARY KEY (login, rol_id)
		)`,
		`CREATE TABLE IF NOT EXISTS notificaciones (
			notificacion_id BIGSERIAL PRIMARY KEY,
			fecha TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			login VARCHAR(100) NOT NULL,
			mensaje TEXT NOT NULL,
			link TEXT,
			data_json JSONB,
			tipo_mensaje VARCHAR(100),
			vista BOOLEAN NOT NULL DEFAULT FALSE,
			login_que_notifico VARCHAR(100)
		)`,
		`CREATE TABLE IF NOT EXISTS mensajes_enviados (
			mensaje_id BIGSERIAL PRIMARY KEY,
			tipo VARCHAR(20) NOT NULL,
			remitente VARCHAR(100),
			login_destino VARCHAR(100) NOT NULL,
			destino VARCHAR(255),
			asunto TEXT,
			contenido TEXT NOT NULL,
			estado VARCHAR(20) NOT NULL,
			mensaje_externo_id VARCHAR(255),
			metadata JSONB,
			fecha TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS configuraciones (
			clave VARCHAR(100) PRIMARY KEY,
			valor TEXT
		)`,
	}
	for _, q := range queries {
		if _, err := db.ExecContext(context.Background(), q); err != nil {
			t.Logf("Warning: failed to create table: %v", err)
		}
	}
}

func seedTestData(t *testing.T, db *sql.DB) {
	t.Helper()

	seeds := []string{
		`INSERT INTO usuarios (login, nombre, apellido, celular, mail)
		 VALUES ('e2e_ana', 'Ana', 'García', NULL, NULL)
		 ON CONFLICT (login) DO NOTHING`,
		`INSERT INTO usuarios (login, nombre, apellido, celular, mail)
		 VALUES ('e2e_sup', 'Sofía', 'Pérez', NULL, NULL)
		 ON CONFLICT (login) DO NOTHING`,
		`INSERT INTO roles (descripcion)
		 SELECT 'supervision'
		 WHERE NOT EXISTS (SELECT 1 FROM roles WHERE descripcion = 'supervision')`,
		`INSERT INTO usuario_rol (login, rol_id)
		 SELECT 'e2e_ana', rol_id FROM roles WHERE descripcion = 'supervision'
		 ON CONFLICT DO NOTHING`,
		`INSERT INTO usuario_rol (login, rol_id)
		 SELECT 'e2e_sup', rol_id FROM roles WHERE descripcion = 'supervision'
		 ON CONFLICT DO NOTHING`,
	}
	for _, q := range seeds {
		_, err := db.ExecContext(context.Background(), q)
		require.NoError(t, err)
	}

	// Leave exactly the two harness users in the role and no stale rows from
	// earlier runs, so the fan-out and listing counts are deterministic.
	cleanups := []string{
		`DELETE FROM usuario_rol
		 WHERE rol_id IN (SELECT rol_id FROM roles WHERE descripcion = 'supervision')
		   AND login NOT IN ('e2e_ana', 'e2e_sup')`,
		`DELETE FROM notificaciones WHERE login IN ('e2e_ana', 'e2e_sup')`,
		`DELETE FROM mensajes_enviados WHERE login_destino IN ('e2e_ana', 'e2e_sup')`,
	}
	for _, q := range cleanups {
		_, err := db.ExecContext(context.Background(), q)
		require.NoError(t, err)
	}
}

// ==========================
// Round-Trip Scenario
// ==========================

// The composed flow over real SQL: a role fan-out lands one row per member,
// each recipient's listing sees only their own row with the unseen counter
// set, and a staff mark-seen dismisses the whole broadcast group at once.
func TestNotificationRoundTrip(t *testing.T) {
	db := openDB(t)
	createSchema(t, db)
	seedTestData(t, db)

	ctx := context.Background()
	log := logger.NewTestLogger(t)
	dir := directory.New(db)
	store := notification.NewStore(db, dir, log)
	orch := orchestrator.New(db, store, ledger.New(), nil, dir, nil, nil, nil, nil, log)

	res, err := orch.NotifyRole(ctx, "supervision", orchestrator.NotifyParams{
		Mensaje: "Nuevo caso",
		Link:    "/casos/5",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Creadas)

	page := store.ListForUser(ctx, "e2e_ana", models.FilterAll, 1, 10)
	require.True(t, page.Success)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.NoVistas)
	require.Len(t, page.Notificaciones, 1)
	assert.Equal(t, "Nuevo caso", page.Notificaciones[0].Mensaje)
	assert.Equal(t, "/casos/5", page.Notificaciones[0].Link)
	assert.False(t, page.Notificaciones[0].Vista)
	assert.Equal(t, models.SystemActorName, page.Notificaciones[0].ActorName)

	// Staff caller dismisses their copy; the group update must reach every
	// unseen row of the same broadcast across recipients.
	roles, err := dir.RolesOf(ctx, "e2e_sup")
	require.NoError(t, err)
	require.Contains(t, roles, "supervision")

	var supID int64
	err = db.QueryRowContext(ctx, `
		SELECT notificacion_id FROM notificaciones
		WHERE login = 'e2e_sup' AND mensaje = 'Nuevo caso'`).Scan(&supID)
	require.NoError(t, err)

	markRes := store.MarkSeen(ctx, "e2e_sup", supID, roles)
	require.True(t, markRes.Success)
	assert.EqualValues(t, 2, markRes.Actualizadas)

	page = store.ListForUser(ctx, "e2e_ana", models.FilterAll, 1, 10)
	require.True(t, page.Success)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 0, page.NoVistas)
	require.Len(t, page.Notificaciones, 1)
	assert.True(t, page.Notificaciones[0].Vista)
}

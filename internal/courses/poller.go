// Package courses verifies course completion for pending applications
// against an external provider. The loop is paced: a fixed sleep separates
// items so the provider is never hammered, and one bad item never aborts
// the pass.
package courses

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonhttp "github.com/cosimani/rua-api-sub001/internal/common/http"
	"github.com/cosimani/rua-api-sub001/internal/common/logger"
	"github.com/cosimani/rua-api-sub001/internal/notification"
	"github.com/cosimani/rua-api-sub001/internal/orchestrator"
)

// Notifier tells an applicant their course was verified. Optional; a nil
// notifier just skips the notification.
type Notifier interface {
	NotifyUser(ctx context.Context, login string, p orchestrator.NotifyParams) (*notification.Result, error)
}

type Poller struct {
	db         *sql.DB
	httpClient *commonhttp.Client
	baseURL    string
	interval   time.Duration
	itemDelay  time.Duration
	notifier   Notifier
	logger     logger.Logger
}

func NewPoller(db *sql.DB, httpClient *commonhttp.Client, baseURL string,
	interval, itemDelay time.Duration, notifier Notifier, log logger.Logger) *Poller {
	return &Poller{
		db:         db,
		httpClient: httpClient,
		baseURL:    baseURL,
		interval:   interval,
		itemDelay:  itemDelay,
		notifier:   notifier,
		logger:     log.WithFields(map[string]interface{}{"componente": "cursos"}),
	}
}

// Run executes verification passes until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		p.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

type pendiente struct {
	PostulacionID int64
	Login         string
}

// RunOnce verifies every pending application in one pass.
func (p *Poller) RunOnce(ctx context.Context) {
	pendientes, err := p.loadPending(ctx)
	if err != nil {
		p.logger.Error("pending load failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for i, item := range pendientes {
		if ctx.Err() != nil {
			return
		}
		// Fixed pacing between items, not before the first one.
		if i > 0 {
			time.Sleep(p.itemDelay)
		}

		aprobado, ok := p.checkOne(ctx, item.Login)
		if !ok || !aprobado {
			continue
		}

		if err := p.markApproved(ctx, item.PostulacionID); err != nil {
			p.logger.Error("approval update failed", map[string]interface{}{
				"postulacionId": item.PostulacionID,
				"error":         err.Error(),
			})
			continue
		}

		if p.notifier != nil {
			res, err := p.notifier.NotifyUser(ctx, item.Login, orchestrator.NotifyParams{
				Mensaje: "Tu curso fue verificado y aprobado",
				Link:    fmt.Sprintf("/postulaciones/%d", item.PostulacionID),
				Tipo:    "curso",
			})
			if err != nil || (res != nil && !res.Success) {
				p.logger.Warn("approval notification failed", map[string]interface{}{
					"login": item.Login,
				})
			}
		}
	}
}

func (p *Poller) loadPending(ctx context.Context) ([]pendiente, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT postulacion_id, login
		FROM postulaciones
		WHERE curso_aprobado = FALSE`)
	if err != nil {
		return nil, fmt.Errorf("query pending applications: %w", err)
	}
	defer rows.Close()

	var out []pendiente
	for rows.Next() {
		var item pendiente
		if err := rows.Scan(&item.PostulacionID, &item.Login); err != nil {
			return nil, fmt.Errorf("scan pending application: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// checkOne asks the provider whether the login completed the course. Soft
// failure: any transport or parsing error reports not-ok and the item is
// retried on the next pass.
func (p *Poller) checkOne(ctx context.Context, login string) (aprobado, ok bool) {
	endpoint := fmt.Sprintf("%s/cursos/estado?login=%s", p.baseURL, login)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("course check failed", map[string]interface{}{
			"login": login,
			"error": err.Error(),
		})
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, false
	}

	var body struct {
		Aprobado bool `json:"aprobado"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, false
	}
	return body.Aprobado, true
}

func (p *Poller) markApproved(ctx context.Context, postulacionID int64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE postulaciones
		SET curso_aprobado = TRUE, curso_verificado_en = NOW()
		WHERE postulacion_id = $1`, postulacionID)
	return err
}

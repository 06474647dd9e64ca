// Package orchestrator is the fan-out entry point the HTTP layer calls. It
// is intentionally thin: persist the notification rows, and for
// single-recipient sends make one best-effort channel delivery attempt. A
// failed send is observable only through the message ledger.
package orchestrator

import (
	"context"
	"database/sql"
	"time"

	"github.com/cosimani/rua-api-sub001/internal/channel/whatsapp"
	"github.com/cosimani/rua-api-sub001/internal/common/errors"
	"github.com/cosimani/rua-api-sub001/internal/common/logger"
	"github.com/cosimani/rua-api-sub001/internal/common/metrics"
	"github.com/cosimani/rua-api-sub001/internal/common/observability"
	"github.com/cosimani/rua-api-sub001/internal/ledger"
	"github.com/cosimani/rua-api-sub001/internal/models"
	"github.com/cosimani/rua-api-sub001/internal/notification"
)

// WhatsAppSender is the outbound WhatsApp boundary.
type WhatsAppSender interface {
	SendTemplate(ctx context.Context, to, templateName string, vars []string, creds *models.WhatsAppCredentials) (map[string]interface{}, error)
}

// EmailSender is the outbound email boundary.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
	From() string
}

// CredentialSource resolves channel credentials fresh per operation.
type CredentialSource interface {
	WhatsApp(ctx context.Context) (*models.WhatsAppCredentials, error)
}

// UserDirectory supplies recipient contact data inside the open transaction.
type UserDirectory interface {
	GetUserTx(ctx context.Context, tx *sql.Tx, login string) (*models.Usuario, error)
}

// EventSink receives best-effort post-commit notification events.
type EventSink interface {
	NotificationCreated(ctx context.Context, n *models.Notification)
}

type Orchestrator struct {
	db       *sql.DB
	store    *notification.Store
	ledger   *ledger.Ledger
	creds    CredentialSource
	dir      UserDirectory
	whatsapp WhatsAppSender
	email    EmailSender
	events   EventSink
	obs      *observability.Observability
	logger   logger.Logger
}

func New(db *sql.DB, store *notification.Store, led *ledger.Ledger, creds CredentialSource,
	dir UserDirectory, wa WhatsAppSender, em EmailSender, events EventSink,
	obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		db:       db,
		store:    store,
		ledger:   led,
		creds:    creds,
		dir:      dir,
		whatsapp: wa,
		email:    em,
		events:   events,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"componente": "orquestador"}),
	}
}

// NotifyParams is one trigger: the notification content plus the optional
// channel-delivery request.
type NotifyParams struct {
	Mensaje string
	Link    string
	Data    map[string]interface{}
	Tipo    string
	Actor   string

	SendWhatsApp bool
	Template     string
	TemplateVars []string

	SendEmail bool
	Asunto    string
}

func (p NotifyParams) createParams() notification.CreateParams {
	return notification.CreateParams{
		Mensaje: p.Mensaje,
		Link:    p.Link,
		Data:    p.Data,
		Tipo:    p.Tipo,
		Actor:   p.Actor,
	}
}

// NotifyUser creates one notification and, when requested, attempts channel
// delivery. The notification row, the ledger row and the send attempt share
// one transaction; channel failure never rolls the notification back. The
// returned error is non-nil only for configuration errors, which must
// propagate per the error policy.
func (o *Orchestrator) NotifyUser(ctx context.Context, login string, p NotifyParams) (*notification.Result, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return o.failure("notify_user begin", err), nil
	}
	defer tx.Rollback()

	n, err := o.store.CreateForUser(ctx, tx, login, p.createParams())
	if err != nil {
		return o.failure("notify_user insert", err), nil
	}

	if p.SendWhatsApp {
		if err := o.sendWhatsApp(ctx, tx, login, p); err != nil {
			if errors.IsConfiguration(err) {
				return nil, err
			}
			// Delivery and notification creation are independent
			// commitments; the ledger row already carries the failure.
			o.logger.Warn("whatsapp delivery attempt failed", map[string]interface{}{
				"login": login,
				"error": err.Error(),
			})
		}
	}

	if p.SendEmail && o.email != nil {
		o.sendEmail(ctx, tx, login, p)
	}

	if err := tx.Commit(); err != nil {
		return o.failure("notify_user commit", err), nil
	}

	metrics.NotificationsCreated.WithLabelValues("usuario").Inc()
	if o.events != nil {
		o.events.NotificationCreated(ctx, n)
	}

	return &notification.Result{Success: true, Message: "Notificación creada", Creadas: 1}, nil
}

// NotifyRole fans one trigger out to every member of the role as a single
// atomic batch. No channel delivery happens on the role path.
func (o *Orchestrator) NotifyRole(ctx context.Context, role string, p NotifyParams) (*notification.Result, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return o.failure("notify_role begin", err), nil
	}
	defer tx.Rollback()

	created, err := o.store.CreateForRole(ctx, tx, role, p.createParams())
	if err != nil {
		return o.failure("notify_role fan-out", err), nil
	}

	if err := tx.Commit(); err != nil {
		return o.failure("notify_role commit", err), nil
	}

	metrics.NotificationsCreated.WithLabelValues("rol").Add(float64(len(created)))
	if o.events != nil {
		for _, n := range created {
			o.events.NotificationCreated(ctx, n)
		}
	}

	return &notification.Result{Success: true, Message: "Notificaciones creadas", Creadas: len(created)}, nil
}

// sendWhatsApp resolves credentials, attempts the template send and stages
// the ledger row on the open transaction. Configuration errors propagate;
// everything else collapses into the ledger status.
func (o *Orchestrator) sendWhatsApp(ctx context.Context, tx *sql.Tx, login string, p NotifyParams) error {
	creds, err := o.creds.WhatsApp(ctx)
	if err != nil {
		return err
	}

	user, err := o.userFor(ctx, tx, login)
	if err != nil || user.Celular == "" {
		motivo := "sin número de celular"
		if err != nil {
			motivo = err.Error()
		}
		_, recErr := o.ledger.Record(ctx, tx, ledger.RecordParams{
			Canal:     models.ChannelWhatsApp,
			Remitente: creds.PhoneNumberID,
			Login:     login,
			Contenido: p.Mensaje,
			Estado:    models.StatusNotSent,
			Metadata:  map[string]interface{}{"motivo": motivo},
		})
		metrics.MessagesSent.WithLabelValues(string(models.ChannelWhatsApp), string(models.StatusNotSent)).Inc()
		return recErr
	}

	start := time.Now()
	resp, sendErr := o.whatsapp.SendTemplate(ctx, user.Celular, p.Template, p.TemplateVars, creds)
	metrics.SendDuration.WithLabelValues(string(models.ChannelWhatsApp)).Observe(time.Since(start).Seconds())
	if o.obs != nil {
		o.obs.RecordSendDuration(ctx, time.Since(start), string(models.ChannelWhatsApp))
	}

	estado := models.StatusSent
	externalID := ""
	var metadata interface{}
	switch {
	case sendErr != nil:
		estado = models.StatusError
		metadata = map[string]interface{}{"error": sendErr.Error()}
		sendErr = errors.NewChannelSendFailedError(string(models.ChannelWhatsApp), user.Celular, sendErr)
	case whatsapp.IsErrorResponse(resp):
		estado = models.StatusError
		metadata = resp
	default:
		externalID = whatsapp.MessageID(resp)
		metadata = resp
	}

	_, recErr := o.ledger.Record(ctx, tx, ledger.RecordParams{
		Canal:      models.ChannelWhatsApp,
		Remitente:  creds.PhoneNumberID,
		Login:      login,
		Destino:    user.Celular,
		Contenido:  p.Mensaje,
		Estado:     estado,
		ExternalID: externalID,
		Metadata:   metadata,
	})

	metrics.MessagesSent.WithLabelValues(string(models.ChannelWhatsApp), string(estado)).Inc()
	if o.obs != nil {
		o.obs.RecordSend(ctx, string(models.ChannelWhatsApp), string(estado))
	}

	if recErr != nil {
		return recErr
	}
	return sendErr
}

// sendEmail mirrors sendWhatsApp for the email channel. Best effort only.
func (o *Orchestrator) sendEmail(ctx context.Context, tx *sql.Tx, login string, p NotifyParams) {
	user, err := o.userFor(ctx, tx, login)
	if err != nil || user.Mail == "" {
		return
	}

	start := time.Now()
	externalID, sendErr := o.email.Send(ctx, user.Mail, p.Asunto, p.Mensaje)
	metrics.SendDuration.WithLabelValues(string(models.ChannelEmail)).Observe(time.Since(start).Seconds())
	if o.obs != nil {
		o.obs.RecordSendDuration(ctx, time.Since(start), string(models.ChannelEmail))
	}

	estado := models.StatusSent
	var metadata interface{}
	if sendErr != nil {
		estado = models.StatusError
		externalID = ""
		metadata = map[string]interface{}{"error": sendErr.Error()}
	}

	if _, err := o.ledger.Record(ctx, tx, ledger.RecordParams{
		Canal:      models.ChannelEmail,
		Remitente:  o.email.From(),
		Login:      login,
		Destino:    user.Mail,
		Asunto:     p.Asunto,
		Contenido:  p.Mensaje,
		Estado:     estado,
		ExternalID: externalID,
		Metadata:   metadata,
	}); err != nil {
		o.logger.Error("email ledger record failed", map[string]interface{}{
			"login": login,
			"error": err.Error(),
		})
	}

	metrics.MessagesSent.WithLabelValues(string(models.ChannelEmail), string(estado)).Inc()
	if o.obs != nil {
		o.obs.RecordSend(ctx, string(models.ChannelEmail), string(estado))
	}
}

func (o *Orchestrator) userFor(ctx context.Context, tx *sql.Tx, login string) (*models.Usuario, error) {
	user, err := o.dir.GetUserTx(ctx, tx, login)
	if err != nil {
		o.logger.Warn("recipient lookup failed", map[string]interface{}{
			"login": login,
			"error": err.Error(),
		})
		return nil, err
	}
	return user, nil
}

func (o *Orchestrator) failure(operation string, err error) *notification.Result {
	o.logger.Error("orchestration failed", map[string]interface{}{
		"operacion": operation,
		"error":     err.Error(),
	})
	return &notification.Result{Success: false, Message: "Error de base de datos"}
}

package models

import "time"

// Notification is one in-app alert, one row per recipient. The identifier
// and creation timestamp are assigned by the database and never mutated.
type Notification struct {
	ID        int64                  `json:"notificacion_id"`
	Fecha     time.Time              `json:"fecha"`
	Login     string                 `json:"-"`
	Mensaje   string                 `json:"mensaje"`
	Link      string                 `json:"link"`
	Data      map[string]interface{} `json:"data_json,omitempty"`
	Tipo      string                 `json:"tipo_mensaje,omitempty"`
	Vista     bool                   `json:"vista"`
	Actor     string                 `json:"login_que_notifico,omitempty"`
	ActorName string                 `json:"nombre_completo_que_notifico"`
}

// SystemActorName labels notifications with no recorded actor.
const SystemActorName = "Sistema"

// List filters accepted by the notification store.
const (
	FilterAll    = "todas"
	FilterSeen   = "vistas"
	FilterUnseen = "no_vistas"
)

// RoleAdoptante is the applicant role. Mark-as-seen behaves per-row for this
// role and group-wise for every other role.
const RoleAdoptante = "adoptante"

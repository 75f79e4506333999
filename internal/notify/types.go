// SPDX-License-Identifier: MIT

// Package notify stores in-app notifications, fans them out to live
// subscribers and sends mail.
package notify

import "time"

// Tipo classifies a notification.
type Tipo string

const (
	TipoAnalisisPendiente Tipo = "ANALISIS_PENDIENTE_APROBACION"
	TipoAnalisisAprobado  Tipo = "ANALISIS_APROBADO"
	TipoAnalisisRepetir   Tipo = "ANALISIS_PARA_REPETIR"
	TipoUsuarioPendiente  Tipo = "USUARIO_PENDIENTE"
	TipoUsuarioAprobado   Tipo = "USUARIO_APROBADO"
	TipoSistema           Tipo = "SISTEMA"
)

// Notificacion is a message addressed to one user.
type Notificacion struct {
	ID         string    `json:"id"`
	UsuarioID  int64     `json:"usuarioId"`
	Tipo       Tipo      `json:"tipo"`
	Titulo     string    `json:"titulo"`
	Mensaje    string    `json:"mensaje"`
	AnalisisID *int64    `json:"analisisId,omitempty"`
	Leida      bool      `json:"leida"`
	CreadaEn   time.Time `json:"creadaEn"`
}

// Draft is the content of a notification before it is addressed.
type Draft struct {
	Tipo       Tipo
	Titulo     string
	Mensaje    string
	AnalisisID *int64
}

// Filter narrows a user's notification listing.
type Filter struct {
	SoloNoLeidas bool
}

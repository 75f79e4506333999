// SPDX-License-Identifier: MIT

// Package users manages laboratory accounts and their approval.
package users

import "time"

// Estado is the account state.
type Estado string

const (
	EstadoPendiente Estado = "PENDIENTE"
	EstadoActivo    Estado = "ACTIVO"
	EstadoInactivo  Estado = "INACTIVO"
)

// Usuario is a laboratory account. Secrets never serialize.
type Usuario struct {
	ID                int64      `json:"id"`
	Nombre            string     `json:"nombre"`
	Apellido          string     `json:"apellido"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	Rol               string     `json:"rol"`
	Estado            Estado     `json:"estado"`
	TOTPEnabled       bool       `json:"totpEnabled"`
	PasswordChangedEn *time.Time `json:"passwordChangedEn,omitempty"`
	UltimoLoginEn     *time.Time `json:"ultimoLoginEn,omitempty"`
	CreadoEn          time.Time  `json:"creadoEn"`
	ActualizadoEn     time.Time  `json:"actualizadoEn"`

	PasswordHash      string `json:"-"`
	TOTPSecret        string `json:"-"`
	TOTPPendingSecret string `json:"-"`
}

// RegisterInput is a self-service sign-up.
type RegisterInput struct {
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileInput carries the fields a user may edit on their own account.
type ProfileInput struct {
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
}

// Filter narrows user listings.
type Filter struct {
	Rol    string
	Estado Estado
	Texto  string
}

// SPDX-License-Identifier: MIT

// Package catalog manages the controlled vocabularies: species, cultivars and catalog values.
package catalog

import (
	"time"
)

// Especie is a plant species.
type Especie struct {
	ID               int64     `json:"id"`
	NombreComun      string    `json:"nombreComun"`
	NombreCientifico string    `json:"nombreCientifico"`
	Activo           bool      `json:"activo"`
	CreadoEn         time.Time `json:"creadoEn"`
	ActualizadoEn    time.Time `json:"actualizadoEn"`
}

// EspecieInput carries the writable fields of an Especie.
type EspecieInput struct {
	NombreComun      string `json:"nombreComun"`
	NombreCientifico string `json:"nombreCientifico"`
}

// Cultivar is a named variety of a species.
type Cultivar struct {
	ID            int64     `json:"id"`
	EspecieID     int64     `json:"especieId"`
	EspecieNombre string    `json:"especieNombre"`
	Nombre        string    `json:"nombre"`
	Activo        bool      `json:"activo"`
	CreadoEn      time.Time `json:"creadoEn"`
	ActualizadoEn time.Time `json:"actualizadoEn"`
}

// CultivarInput carries the writable fields of a Cultivar.
type CultivarInput struct {
	EspecieID int64  `json:"especieId"`
	Nombre    string `json:"nombre"`
}

// Tipo classifies catalog values.
type Tipo string

const (
	TipoHumedad         Tipo = "HUMEDAD"
	TipoOrigen          Tipo = "ORIGEN"
	TipoEstado          Tipo = "ESTADO"
	TipoDeposito        Tipo = "DEPOSITO"
	TipoNumeroArticulo  Tipo = "NUMERO_ARTICULO"
	TipoUnidadEmbolsado Tipo = "UNIDAD_EMBOLSADO"
)

// Tipos lists every catalog type.
var Tipos = []string{
	string(TipoHumedad), string(TipoOrigen), string(TipoEstado),
	string(TipoDeposito), string(TipoNumeroArticulo), string(TipoUnidadEmbolsado),
}

// Catalogo is one value of a controlled vocabulary.
type Catalogo struct {
	ID            int64     `json:"id"`
	Tipo          Tipo      `json:"tipo"`
	Valor         string    `json:"valor"`
	Activo        bool      `json:"activo"`
	CreadoEn      time.Time `json:"creadoEn"`
	ActualizadoEn time.Time `json:"actualizadoEn"`
}

// CatalogoInput carries the writable fields of a Catalogo.
type CatalogoInput struct {
	Tipo  Tipo   `json:"tipo"`
	Valor string `json:"valor"`
}

// Filter narrows list queries. Nil pointers mean "no constraint".
type Filter struct {
	Activo    *bool
	Texto     string
	EspecieID int64
	Tipo      Tipo
}

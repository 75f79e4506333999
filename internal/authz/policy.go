// SPDX-License-Identifier: MIT

package authz

// Policy registry for HTTP operations.
// This is the single source of truth for required scopes.
var operationScopes = map[string][]Scope{
	// Own account
	"GetMe":                {ScopeRead},
	"UpdateMe":             {ScopeRead},
	"ChangePassword":       {ScopeRead},
	"Logout":               {ScopeRead},
	"TwoFactorSetup":       {ScopeRead},
	"TwoFactorEnable":      {ScopeRead},
	"TwoFactorDisable":     {ScopeRead},
	"TwoFactorStatus":      {ScopeRead},
	"RegenerateBackup":     {ScopeRead},
	"ListTrustedDevices":   {ScopeRead},
	"RevokeTrustedDevice":  {ScopeRead},
	"RevokeTrustedDevices": {ScopeRead},

	// Catalog
	"ListEspecies":       {ScopeRead},
	"GetEspecie":         {ScopeRead},
	"CreateEspecie":      {ScopeAdmin},
	"UpdateEspecie":      {ScopeAdmin},
	"DeactivateEspecie":  {ScopeAdmin},
	"ReactivateEspecie":  {ScopeAdmin},
	"ListCultivares":     {ScopeRead},
	"GetCultivar":        {ScopeRead},
	"CreateCultivar":     {ScopeAdmin},
	"UpdateCultivar":     {ScopeAdmin},
	"DeactivateCultivar": {ScopeAdmin},
	"ReactivateCultivar": {ScopeAdmin},
	"ListCatalogos":      {ScopeRead},
	"GetCatalogo":        {ScopeRead},
	"CreateCatalogo":     {ScopeAdmin},
	"UpdateCatalogo":     {ScopeAdmin},
	"DeactivateCatalogo": {ScopeAdmin},
	"ReactivateCatalogo": {ScopeAdmin},

	// Lots
	"ListLotes":         {ScopeRead},
	"GetLote":           {ScopeRead},
	"ListLotesEligible": {ScopeRead},
	"CreateLote":        {ScopeWrite},
	"UpdateLote":        {ScopeWrite},
	"DeactivateLote":    {ScopeAdmin},
	"ReactivateLote":    {ScopeAdmin},

	// Analyses
	"ListAnalisis":         {ScopeRead},
	"GetAnalisis":          {ScopeRead},
	"ListAnalisisByLote":   {ScopeRead},
	"CreateAnalisis":       {ScopeWrite},
	"UpdateAnalisis":       {ScopeWrite},
	"StartAnalisis":        {ScopeWrite},
	"FinalizeAnalisis":     {ScopeWrite},
	"ApproveAnalisis":      {ScopeApprove},
	"MarkRepeatAnalisis":   {ScopeApprove},
	"DeactivateAnalisis":   {ScopeAdmin},
	"ReactivateAnalisis":   {ScopeAdmin},
	"PreviewCalculo":       {ScopeRead},
	"GetGerminacionLimits": {ScopeRead},

	// Legacy
	"ListLegados": {ScopeRead},
	"GetLegado":   {ScopeRead},

	// Users
	"ListUsuarios":      {ScopeAdmin},
	"GetUsuario":        {ScopeAdmin},
	"ApproveUsuario":    {ScopeAdmin},
	"RejectUsuario":     {ScopeAdmin},
	"ChangeRol":         {ScopeAdmin},
	"DeactivateUsuario": {ScopeAdmin},
	"ReactivateUsuario": {ScopeAdmin},

	// Notifications
	"ListNotificaciones":     {ScopeRead},
	"CountNotificaciones":    {ScopeRead},
	"MarkNotificacionRead":   {ScopeRead},
	"MarkNotificacionesRead": {ScopeRead},
	"DeleteNotificacion":     {ScopeRead},
	"StreamNotificaciones":   {ScopeRead},

	// Dashboard and spreadsheets
	"GetDashboard":     {ScopeRead},
	"ExportLotes":      {ScopeRead},
	"ExportAnalisis":   {ScopeRead},
	"ImportLegados":    {ScopeAdmin},
	"GetSystemInfo":    {ScopeAdmin},
	"InvalidateCaches": {ScopeAdmin},
}

// RequiredScopes returns the required scopes for an operation ID.
func RequiredScopes(operationID string) ([]Scope, bool) {
	scopes, ok := operationScopes[operationID]
	if !ok {
		return nil, false
	}
	return append([]Scope{}, scopes...), true
}

// Operations lists every registered operation ID.
func Operations() []string {
	out := make([]string, 0, len(operationScopes))
	for op := range operationScopes {
		out = append(out, op)
	}
	return out
}

// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seedlab/seedlab/internal/api/middleware"
	"github.com/seedlab/seedlab/internal/lims"
)

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableCSRF:     s.cfg.EnableCSRF,
		TrustedProxies: s.trusted,
		CSP:            middleware.DefaultCSP,
		EnableMetrics:  true,
		TracingService: s.tracing,
		EnableLogging:  true,
		RateLimitRPM:   s.cfg.RateLimitRPM,
		Audit:          s.audit,
	})
	s.registerPublicRoutes(r)
	r.Route(BasePath, func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, errRouteNotFound)
		})
		s.registerAuthRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate(false))
			s.registerAccountRoutes(r)
			s.registerCatalogRoutes(r)
			s.registerLotRoutes(r)
			s.registerAnalysisRoutes(r)
			s.registerUserRoutes(r)
			s.registerNotificationRoutes(r)
			s.registerReportRoutes(r)
		})
		r.With(s.authenticate(true)).Get("/notificaciones/stream", s.op("StreamNotificaciones", s.handleNotificationStream))
		r.With(s.authenticate(true)).Get("/notifications/stream", s.op("StreamNotificaciones", s.handleNotificationStream))
	})
	return r
}

func (s *Server) registerPublicRoutes(r chi.Router) {
	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())
}

// registerAuthRoutes mounts the unauthenticated credential endpoints behind
// the per-IP token bucket limiter.
func (s *Server) registerAuthRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if s.authLimiter != nil {
			r.Use(s.authLimiter.Middleware(s.trusted, middleware.TooManyRequests(s.audit, s.trusted, time.Minute)))
		}
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/recovery/request", s.handleRecoveryRequest)
		r.Post("/auth/recovery/reset", s.handleRecoveryReset)
		r.Post("/auth/recovery/2fa", s.handleRecovery2FA)
	})
}

func (s *Server) registerAccountRoutes(r chi.Router) {
	r.Post("/auth/logout", s.op("Logout", s.handleLogout))
	r.Get("/auth/me", s.op("GetMe", s.handleGetMe))
	r.Put("/auth/me", s.op("UpdateMe", s.handleUpdateMe))
	r.Put("/auth/password", s.op("ChangePassword", s.handleChangePassword))

	r.Post("/auth/2fa/setup", s.op("TwoFactorSetup", s.handleTwoFactorSetup))
	r.Post("/auth/2fa/enable", s.op("TwoFactorEnable", s.handleTwoFactorEnable))
	r.Post("/auth/2fa/disable", s.op("TwoFactorDisable", s.handleTwoFactorDisable))
	r.Get("/auth/2fa/status", s.op("TwoFactorStatus", s.handleTwoFactorStatus))
	r.Post("/auth/2fa/backup-codes", s.op("RegenerateBackup", s.handleRegenerateBackup))

	r.Get("/auth/trusted-devices", s.op("ListTrustedDevices", s.handleListDevices))
	r.Delete("/auth/trusted-devices", s.op("RevokeTrustedDevices", s.handleRevokeDevices))
	r.Delete("/auth/trusted-devices/{deviceId}", s.op("RevokeTrustedDevice", s.handleRevokeDevice))
}

func (s *Server) registerCatalogRoutes(r chi.Router) {
	r.Get("/especies", s.op("ListEspecies", s.handleListEspecies))
	r.Post("/especies", s.op("CreateEspecie", s.handleCreateEspecie))
	r.Get("/especies/{id}", s.op("GetEspecie", s.handleGetEspecie))
	r.Put("/especies/{id}", s.op("UpdateEspecie", s.handleUpdateEspecie))
	r.Delete("/especies/{id}", s.op("DeactivateEspecie", s.handleDeactivateEspecie))
	r.Post("/especies/{id}/reactivate", s.op("ReactivateEspecie", s.handleReactivateEspecie))

	r.Get("/cultivares", s.op("ListCultivares", s.handleListCultivares))
	r.Post("/cultivares", s.op("CreateCultivar", s.handleCreateCultivar))
	r.Get("/cultivares/{id}", s.op("GetCultivar", s.handleGetCultivar))
	r.Put("/cultivares/{id}", s.op("UpdateCultivar", s.handleUpdateCultivar))
	r.Delete("/cultivares/{id}", s.op("DeactivateCultivar", s.handleDeactivateCultivar))
	r.Post("/cultivares/{id}/reactivate", s.op("ReactivateCultivar", s.handleReactivateCultivar))

	r.Get("/catalogos", s.op("ListCatalogos", s.handleListCatalogos))
	r.Post("/catalogos", s.op("CreateCatalogo", s.handleCreateCatalogo))
	r.Get("/catalogos/{id}", s.op("GetCatalogo", s.handleGetCatalogo))
	r.Put("/catalogos/{id}", s.op("UpdateCatalogo", s.handleUpdateCatalogo))
	r.Delete("/catalogos/{id}", s.op("DeactivateCatalogo", s.handleDeactivateCatalogo))
	r.Post("/catalogos/{id}/reactivate", s.op("ReactivateCatalogo", s.handleReactivateCatalogo))
}

func (s *Server) registerLotRoutes(r chi.Router) {
	r.Get("/lotes", s.op("ListLotes", s.handleListLotes))
	r.Post("/lotes", s.op("CreateLote", s.handleCreateLote))
	r.Get("/lotes/elegibles/{kind}", s.op("ListLotesEligible", s.handleListEligible))
	r.Get("/lotes/{id}", s.op("GetLote", s.handleGetLote))
	r.Put("/lotes/{id}", s.op("UpdateLote", s.handleUpdateLote))
	r.Delete("/lotes/{id}", s.op("DeactivateLote", s.handleDeactivateLote))
	r.Post("/lotes/{id}/reactivate", s.op("ReactivateLote", s.handleReactivateLote))
	r.Get("/lotes/{id}/analisis", s.op("ListAnalisisByLote", s.handleListAnalisisByLote))
}

func (s *Server) registerAnalysisRoutes(r chi.Router) {
	r.Get("/analisis", s.op("ListAnalisis", s.handleListAnalisis))
	r.Get("/analisis/germinacion/limites", s.op("GetGerminacionLimits", s.handleGerminacionLimits))
	for _, kind := range lims.Kinds {
		slug := "/analisis/" + strings.ToLower(string(kind))
		r.Post(slug, s.op("CreateAnalisis", s.handleCreateAnalisis(kind)))
		r.Post(slug+"/preview", s.op("PreviewCalculo", s.handlePreview(kind)))
	}
	r.Get("/analisis/{id}", s.op("GetAnalisis", s.handleGetAnalisis))
	r.Put("/analisis/{id}", s.op("UpdateAnalisis", s.handleUpdateAnalisis))
	r.Delete("/analisis/{id}", s.op("DeactivateAnalisis", s.handleDeactivateAnalisis))
	r.Post("/analisis/{id}/reactivate", s.op("ReactivateAnalisis", s.handleReactivateAnalisis))
	r.Post("/analisis/{id}/start", s.op("StartAnalisis", s.handleTransition(s.analysis.Start)))
	r.Post("/analisis/{id}/finalize", s.op("FinalizeAnalisis", s.handleTransition(s.analysis.Finalize)))
	r.Post("/analisis/{id}/approve", s.op("ApproveAnalisis", s.handleTransition(s.analysis.Approve)))
	r.Post("/analisis/{id}/repeat", s.op("MarkRepeatAnalisis", s.handleMarkRepeatAnalisis))
}

func (s *Server) registerUserRoutes(r chi.Router) {
	r.Get("/usuarios", s.op("ListUsuarios", s.handleListUsuarios))
	r.Get("/usuarios/{id}", s.op("GetUsuario", s.handleGetUsuario))
	r.Post("/usuarios/{id}/approve", s.op("ApproveUsuario", s.handleApproveUsuario))
	r.Post("/usuarios/{id}/reject", s.op("RejectUsuario", s.handleUserAction(s.users.Reject)))
	r.Put("/usuarios/{id}/rol", s.op("ChangeRol", s.handleChangeRol))
	r.Post("/usuarios/{id}/deactivate", s.op("DeactivateUsuario", s.handleUserAction(s.users.Deactivate)))
	r.Post("/usuarios/{id}/reactivate", s.op("ReactivateUsuario", s.handleUserAction(s.users.Reactivate)))
}

func (s *Server) registerNotificationRoutes(r chi.Router) {
	r.Get("/notificaciones", s.op("ListNotificaciones", s.handleListNotificaciones))
	r.Get("/notificaciones/count", s.op("CountNotificaciones", s.handleCountNotificaciones))
	r.Post("/notificaciones/read-all", s.op("MarkNotificacionesRead", s.handleMarkAllRead))
	r.Post("/notificaciones/{id}/read", s.op("MarkNotificacionRead", s.handleMarkRead))
	r.Delete("/notificaciones/{id}", s.op("DeleteNotificacion", s.handleDeleteNotificacion))
}

func (s *Server) registerReportRoutes(r chi.Router) {
	r.Get("/legados", s.op("ListLegados", s.handleListLegados))
	r.Get("/legados/{id}", s.op("GetLegado", s.handleGetLegado))

	r.Get("/dashboard", s.op("GetDashboard", s.handleDashboard))

	r.Get("/excel/export/lotes", s.op("ExportLotes", s.handleExportLotes))
	r.Get("/excel/export/analisis", s.op("ExportAnalisis", s.handleExportAnalisis))
	r.Post("/excel/import/legados", s.op("ImportLegados", s.handleImportLegados))

	r.Get("/system/info", s.op("GetSystemInfo", s.handleSystemInfo))
	r.Post("/system/caches/invalidate", s.op("InvalidateCaches", s.handleInvalidateCaches))
}

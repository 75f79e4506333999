// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/auth"
	"github.com/seedlab/seedlab/internal/users"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type disableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

type recoveryRequest struct {
	Email string `json:"email"`
}

type recoveryResetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

// respondTokens sets the refresh cookie when tokens were issued.
func (s *Server) respondTokens(w http.ResponseWriter, r *http.Request, res auth.LoginResult) {
	if res.RefreshToken != "" {
		auth.SetRefreshCookie(w, r, res.RefreshToken, int(s.refreshTTL.Seconds()))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondTokens(w, r, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	raw := auth.ExtractRefresh(r, in.RefreshToken)
	if raw == "" {
		writeError(w, r, apperr.Unauthorized("refresh token required"))
		return
	}
	res, err := s.auth.Refresh(r.Context(), raw)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			auth.ClearRefreshCookie(w, r)
		}
		writeError(w, r, err)
		return
	}
	s.respondTokens(w, r, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := auth.ExtractRefresh(r, in.RefreshToken); raw != "" {
		if err := s.auth.Logout(r.Context(), raw); err != nil {
			writeError(w, r, err)
			return
		}
	}
	auth.ClearRefreshCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleRecoveryRequest(w http.ResponseWriter, r *http.Request) {
	var in recoveryRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.auth.RequestRecovery(r.Context(), in.Email); err != nil {
		// Only validation failures surface; unknown accounts answer like known ones.
		if apperr.KindOf(err) == apperr.KindInvalid {
			writeError(w, r, err)
			return
		}
		s.logger.Error().Err(err).Msg("recovery request failed")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "If the account exists, a recovery code has been sent.",
	})
}

func (s *Server) handleRecoveryReset(w http.ResponseWriter, r *http.Request) {
	var in recoveryResetRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.auth.ResetPassword(r.Context(), in.Email, in.Code, in.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecovery2FA(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.auth.Recover2FA(r.Context(), in.Email, in.Code); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Me(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var in users.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.users.UpdateProfile(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.users.ChangePassword(r.Context(), in.CurrentPassword, in.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	auth.ClearRefreshCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	e, err := s.auth.Setup(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	var in codeRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	codes, err := s.auth.Enable(r.Context(), in.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	var in disableRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.auth.Disable(r.Context(), in.Password, in.Code); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.auth.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRegenerateBackup(w http.ResponseWriter, r *http.Request) {
	var in codeRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	codes, err := s.auth.RegenerateBackupCodes(r.Context(), in.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.auth.Devices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceId")
	if err := s.auth.RevokeDevice(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeDevices(w http.ResponseWriter, r *http.Request) {
	n, err := s.auth.RevokeAllDevices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

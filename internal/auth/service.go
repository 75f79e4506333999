// SPDX-License-Identifier: MIT

// Package auth signs users in and manages their second factor, trusted
// devices and account recovery.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/auth/password"
	"github.com/seedlab/seedlab/internal/auth/session"
	"github.com/seedlab/seedlab/internal/auth/token"
	"github.com/seedlab/seedlab/internal/auth/totp"
	"github.com/seedlab/seedlab/internal/authz"
	"github.com/seedlab/seedlab/internal/config"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/metrics"
	"github.com/seedlab/seedlab/internal/normalize"
	"github.com/seedlab/seedlab/internal/notify"
	"github.com/seedlab/seedlab/internal/users"
)

const (
	backupCodeLength   = 8
	recoveryCodeLength = 6
)

var (
	errBadCredentials = apperr.Unauthorized("invalid username or password")
	errBadSecondCode  = apperr.Unauthorized("invalid second factor code")
	errBadRecovery    = apperr.Invalid("invalid or expired recovery code").WithField("code", "invalid or expired")
)

// Revoker ends every session and trusted device of a user.
type Revoker struct {
	store    *Store
	sessions session.Store
}

func NewRevoker(store *Store, sessions session.Store) *Revoker {
	return &Revoker{store: store, sessions: sessions}
}

func (r *Revoker) RevokeUser(ctx context.Context, userID int64) error {
	_, errSessions := r.sessions.DeleteUser(ctx, userID)
	_, errDevices := r.store.RevokeAllDevices(ctx, userID)
	return errors.Join(errSessions, errDevices)
}

// LoginInput is a sign-in attempt. Login is a username or an email.
type LoginInput struct {
	Login             string `json:"login"`
	Password          string `json:"password"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
	DeviceName        string `json:"deviceName,omitempty"`
	TOTPCode          string `json:"totpCode,omitempty"`
	BackupCode        string `json:"backupCode,omitempty"`
	TrustDevice       bool   `json:"trustDevice,omitempty"`
}

// LoginResult carries tokens, or only Requires2FA when a code is still needed.
type LoginResult struct {
	AccessToken      string         `json:"accessToken,omitempty"`
	RefreshToken     string         `json:"refreshToken,omitempty"`
	TokenType        string         `json:"tokenType,omitempty"`
	ExpiresIn        int64          `json:"expiresIn,omitempty"`
	User             *users.Usuario `json:"user,omitempty"`
	Requires2FA      bool           `json:"requires2FA,omitempty"`
	Requires2FASetup bool           `json:"requires2FASetup,omitempty"`
	TrustedDevice    *Device        `json:"trustedDevice,omitempty"`
}

// TwoFactorStatus summarizes the caller's second factor.
type TwoFactorStatus struct {
	Enabled              bool `json:"enabled"`
	Required             bool `json:"required"`
	BackupCodesRemaining int  `json:"backupCodesRemaining"`
	TrustedDevices       int  `json:"trustedDevices"`
}

// Service implements authentication flows on top of users.
type Service struct {
	cfg      config.AuthConfig
	users    *users.Service
	store    *Store
	sessions session.Store
	issuer   *token.Issuer
	lockout  *Lockout
	mailer   notify.Mailer
	audit    *audit.Logger
	logger   zerolog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Deps groups the collaborators of Service.
type Deps struct {
	Users    *users.Service
	Store    *Store
	Sessions session.Store
	Issuer   *token.Issuer
	Lockout  *Lockout
	Mailer   notify.Mailer
	Audit    *audit.Logger
}

func NewService(cfg config.AuthConfig, d Deps) *Service {
	return &Service{
		cfg:      cfg,
		users:    d.Users,
		store:    d.Store,
		sessions: d.Sessions,
		issuer:   d.Issuer,
		lockout:  d.Lockout,
		mailer:   d.Mailer,
		audit:    d.Audit,
		logger:   xglog.WithComponent("auth"),
		now:      time.Now,
	}
}

// Issuer returns the access token issuer used by the HTTP middleware.
func (s *Service) Issuer() *token.Issuer { return s.issuer }

func accountKey(u *users.Usuario, login string) string {
	if u != nil {
		return "u:" + strconv.FormatInt(u.ID, 10)
	}
	return "l:" + strings.ToLower(strings.TrimSpace(login))
}

func normalizeBackupCode(code string) string {
	r := strings.NewReplacer("-", "", " ", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(code)))
}

// burnHash spends roughly the time of a real comparison for unknown accounts.
func (s *Service) burnHash(pw string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = password.Hash("not-a-real-password-0")
	})
	password.Verify(s.dummyHash, pw)
}

func (s *Service) lockedErr(d time.Duration) error {
	return apperr.New(apperr.KindLocked, "account locked, retry in %s", d.Round(time.Second))
}

// failed counts a failure for account and returns the error to hand back.
func (s *Service) failed(ctx context.Context, account, login, reason string, err error) error {
	metrics.IncLogin("failure")
	s.audit.LoginFailure(ctx, login, reason)
	locked, lerr := s.lockout.Fail(ctx, account)
	if lerr != nil {
		s.logger.Warn().Err(lerr).Msg("record failed login")
		return err
	}
	if locked > 0 {
		metrics.IncLogin("locked")
		s.audit.LoginLocked(ctx, login, locked)
		return s.lockedErr(locked)
	}
	return err
}

// Login authenticates in.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	login := strings.TrimSpace(in.Login)
	if login == "" || in.Password == "" {
		return LoginResult{}, apperr.Invalid("login and password are required")
	}

	var user *users.Usuario
	u, err := s.users.Store().GetByLogin(ctx, login)
	switch {
	case err == nil:
		user = &u
	case !errors.Is(err, apperr.ErrNotFound):
		return LoginResult{}, err
	}
	account := accountKey(user, login)

	if left, err := s.lockout.Locked(ctx, account); err != nil {
		return LoginResult{}, err
	} else if left > 0 {
		metrics.IncLogin("locked")
		return LoginResult{}, s.lockedErr(left)
	}

	if user == nil {
		s.burnHash(in.Password)
		return LoginResult{}, s.failed(ctx, account, login, "unknown user", errBadCredentials)
	}
	if !password.Verify(u.PasswordHash, in.Password) {
		return LoginResult{}, s.failed(ctx, account, u.Username, "wrong password", errBadCredentials)
	}

	switch u.Estado {
	case users.EstadoPendiente:
		metrics.IncLogin("rejected")
		return LoginResult{}, apperr.Forbidden("account pending approval")
	case users.EstadoInactivo:
		metrics.IncLogin("rejected")
		return LoginResult{}, apperr.Forbidden("account is disabled")
	}

	now := s.now()
	if !u.TOTPEnabled {
		res, err := s.grant(ctx, u, "password")
		res.Requires2FASetup = s.requires2FA(u)
		return res, err
	}

	fp := normalize.Fingerprint(in.DeviceFingerprint)
	if fp != "" {
		d, ok, err := s.store.FindDevice(ctx, u.ID, fp, now)
		if err != nil {
			return LoginResult{}, err
		}
		if ok {
			if err := s.store.TouchDevice(ctx, d.ID, now); err != nil {
				return LoginResult{}, err
			}
			return s.grant(ctx, u, "trusted_device")
		}
	}

	if strings.TrimSpace(in.TOTPCode) == "" && strings.TrimSpace(in.BackupCode) == "" {
		return LoginResult{Requires2FA: true}, nil
	}

	method, ok, err := s.checkSecondFactor(ctx, u, in.TOTPCode, in.BackupCode)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{}, s.failed(ctx, account, u.Username, "invalid second factor", errBadSecondCode)
	}

	var trusted *Device
	if in.TrustDevice && fp != "" {
		client := xglog.ClientFromContext(ctx)
		name := strings.TrimSpace(in.DeviceName)
		if name == "" {
			name = client.UserAgent
		}
		d, err := s.store.TrustDevice(ctx, Device{
			UsuarioID:       u.ID,
			FingerprintHash: fp,
			Nombre:          name,
			UserAgent:       client.UserAgent,
			IP:              client.IP,
			CreadoEn:        now,
			UltimoUsoEn:     now,
			ExpiraEn:        now.Add(s.cfg.TrustedDeviceTTL),
		})
		if err != nil {
			return LoginResult{}, err
		}
		trusted = &d
		s.audit.Security(ctx, audit.EventDeviceTrusted, u.Username, "trusted device "+d.ID, u.ID)
	}

	res, err := s.grant(ctx, u, method)
	res.TrustedDevice = trusted
	return res, err
}

func (s *Service) requires2FA(u users.Usuario) bool {
	return s.cfg.Require2FAForAdmin && u.Rol == authz.RoleAdmin && !u.TOTPEnabled
}

// checkSecondFactor prefers a TOTP code and falls back to a backup code.
func (s *Service) checkSecondFactor(ctx context.Context, u users.Usuario, code, backup string) (string, bool, error) {
	if strings.TrimSpace(code) != "" {
		ok := totp.Validate(code, u.TOTPSecret, s.now())
		metrics.IncSecondFactor("totp", ok)
		if ok || strings.TrimSpace(backup) == "" {
			return "totp", ok, nil
		}
	}
	ok, err := s.redeemBackupCode(ctx, u, backup)
	if err != nil {
		return "", false, err
	}
	metrics.IncSecondFactor("backup_code", ok)
	return "backup_code", ok, nil
}

func (s *Service) redeemBackupCode(ctx context.Context, u users.Usuario, code string) (bool, error) {
	code = normalizeBackupCode(code)
	if len(code) != backupCodeLength {
		return false, nil
	}
	stored, err := s.store.UnusedBackupCodes(ctx, u.ID)
	if err != nil {
		return false, err
	}
	for _, c := range stored {
		if !password.Verify(c.Hash, code) {
			continue
		}
		ok, err := s.store.RedeemBackupCode(ctx, c.ID, s.now())
		if err != nil || !ok {
			return false, err
		}
		s.audit.Security(ctx, audit.EventBackupCodeUsed, u.Username, "backup code redeemed", u.ID)
		return true, nil
	}
	return false, nil
}

func principalOf(u users.Usuario) authz.Principal {
	return authz.Principal{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Rol,
		Scopes:   authz.ScopesForRole(u.Rol),
	}
}

// grant issues an access token and a refresh session for u.
func (s *Service) grant(ctx context.Context, u users.Usuario, method string) (LoginResult, error) {
	res, err := s.issue(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.lockout.Reset(ctx, accountKey(&u, "")); err != nil {
		s.logger.Warn().Err(err).Int64(xglog.FieldUserID, u.ID).Msg("reset lockout")
	}
	if err := s.users.Store().TouchLogin(ctx, u.ID); err != nil {
		s.logger.Warn().Err(err).Int64(xglog.FieldUserID, u.ID).Msg("record last login")
	}
	metrics.IncLogin("success")
	s.audit.LoginSuccess(ctx, u.Username, method)
	s.logger.Info().Int64(xglog.FieldUserID, u.ID).Str(xglog.FieldUsername, u.Username).
		Str(xglog.FieldMethod, method).Msg("login")
	return res, nil
}

func (s *Service) issue(ctx context.Context, u users.Usuario) (LoginResult, error) {
	access, _, err := s.issuer.Issue(principalOf(u))
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := session.NewToken()
	if err != nil {
		return LoginResult{}, err
	}
	now := s.now()
	client := xglog.ClientFromContext(ctx)
	if err := s.sessions.Put(ctx, session.Session{
		ID:        session.HashToken(refresh),
		UserID:    u.ID,
		UserAgent: client.UserAgent,
		IP:        client.IP,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}); err != nil {
		return LoginResult{}, fmt.Errorf("store session: %w", err)
	}
	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.issuer.TTL().Seconds()),
		User:         &u,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair. The old token is spent.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return LoginResult{}, apperr.Unauthorized("refresh token required")
	}
	sess, err := s.sessions.Take(ctx, session.HashToken(refreshToken))
	if errors.Is(err, session.ErrNotFound) {
		return LoginResult{}, apperr.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return LoginResult{}, err
	}
	if sess.Expired(s.now()) {
		return LoginResult{}, apperr.Unauthorized("refresh token expired")
	}
	u, err := s.users.Store().Get(ctx, sess.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return LoginResult{}, apperr.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return LoginResult{}, err
	}
	if u.Estado != users.EstadoActivo {
		return LoginResult{}, apperr.Unauthorized("account is not active")
	}
	return s.issue(ctx, u)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) != "" {
		err := s.sessions.Delete(ctx, session.HashToken(refreshToken))
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return err
		}
	}
	if p, ok := authz.PrincipalFrom(ctx); ok {
		s.audit.Security(ctx, audit.EventLogout, p.Username, "logged out", p.UserID)
	}
	return nil
}

func (s *Service) current(ctx context.Context) (users.Usuario, error) {
	p, ok := authz.PrincipalFrom(ctx)
	if !ok || p.UserID == 0 {
		return users.Usuario{}, apperr.Unauthorized("authentication required")
	}
	return s.users.Store().Get(ctx, p.UserID)
}

// Setup starts 2FA enrollment with a pending secret.
func (s *Service) Setup(ctx context.Context) (totp.Enrollment, error) {
	u, err := s.current(ctx)
	if err != nil {
		return totp.Enrollment{}, err
	}
	if u.TOTPEnabled {
		return totp.Enrollment{}, apperr.Conflict("two-factor authentication is already enabled")
	}
	e, err := totp.Generate(s.cfg.TOTPIssuer, u.Username)
	if err != nil {
		return totp.Enrollment{}, err
	}
	if err := s.users.Store().SetPendingTOTP(ctx, u.ID, e.Secret); err != nil {
		return totp.Enrollment{}, err
	}
	return e, nil
}

// Enable confirms the pending secret with code and returns fresh backup codes.
func (s *Service) Enable(ctx context.Context, code string) ([]string, error) {
	u, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if u.TOTPEnabled {
		return nil, apperr.Conflict("two-factor authentication is already enabled")
	}
	if u.TOTPPendingSecret == "" {
		return nil, apperr.Invalid("no pending two-factor setup")
	}
	ok := totp.Validate(code, u.TOTPPendingSecret, s.now())
	metrics.IncSecondFactor("totp", ok)
	if !ok {
		return nil, apperr.Invalid("invalid verification code").WithField("code", "invalid")
	}
	if err := s.users.Store().EnableTOTP(ctx, u.ID, u.TOTPPendingSecret); err != nil {
		return nil, err
	}
	codes, err := s.newBackupCodes(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Security(ctx, audit.EventTwoFactorEnabled, u.Username, "enabled two-factor authentication", u.ID)
	return codes, nil
}

// Disable turns 2FA off after checking the password and a current code.
func (s *Service) Disable(ctx context.Context, pw, code string) error {
	u, err := s.current(ctx)
	if err != nil {
		return err
	}
	if !u.TOTPEnabled {
		return apperr.Conflict("two-factor authentication is not enabled")
	}
	if !password.Verify(u.PasswordHash, pw) {
		return apperr.Invalid("wrong password").WithField("password", "wrong password")
	}
	_, ok, err := s.checkSecondFactor(ctx, u, code, code)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("invalid verification code").WithField("code", "invalid")
	}
	if err := s.clearSecondFactor(ctx, u.ID); err != nil {
		return err
	}
	s.audit.Security(ctx, audit.EventTwoFactorDisabled, u.Username, "disabled two-factor authentication", u.ID)
	return nil
}

func (s *Service) clearSecondFactor(ctx context.Context, userID int64) error {
	if err := s.users.Store().DisableTOTP(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteBackupCodes(ctx, userID); err != nil {
		return err
	}
	_, err := s.store.RevokeAllDevices(ctx, userID)
	return err
}

// Status reports the caller's 2FA state.
func (s *Service) Status(ctx context.Context) (TwoFactorStatus, error) {
	u, err := s.current(ctx)
	if err != nil {
		return TwoFactorStatus{}, err
	}
	codes, err := s.store.UnusedBackupCodes(ctx, u.ID)
	if err != nil {
		return TwoFactorStatus{}, err
	}
	devices, err := s.store.ListDevices(ctx, u.ID, s.now())
	if err != nil {
		return TwoFactorStatus{}, err
	}
	return TwoFactorStatus{
		Enabled:              u.TOTPEnabled,
		Required:             s.requires2FA(u),
		BackupCodesRemaining: len(codes),
		TrustedDevices:       len(devices),
	}, nil
}

// RegenerateBackupCodes replaces every backup code after checking a TOTP code.
func (s *Service) RegenerateBackupCodes(ctx context.Context, code string) ([]string, error) {
	u, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if !u.TOTPEnabled {
		return nil, apperr.Conflict("two-factor authentication is not enabled")
	}
	ok := totp.Validate(code, u.TOTPSecret, s.now())
	metrics.IncSecondFactor("totp", ok)
	if !ok {
		return nil, apperr.Invalid("invalid verification code").WithField("code", "invalid")
	}
	codes, err := s.newBackupCodes(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Security(ctx, audit.EventBackupCodesRenewed, u.Username, "regenerated backup codes", u.ID)
	return codes, nil
}

func (s *Service) newBackupCodes(ctx context.Context, userID int64) ([]string, error) {
	n := s.cfg.BackupCodeCount
	if n <= 0 {
		n = 10
	}
	codes := make([]string, n)
	hashes := make([]string, n)
	for i := range codes {
		c, err := password.RandomCode(backupCodeLength)
		if err != nil {
			return nil, err
		}
		h, err := password.Hash(c)
		if err != nil {
			return nil, err
		}
		codes[i], hashes[i] = c, h
	}
	if err := s.store.ReplaceBackupCodes(ctx, userID, hashes, s.now()); err != nil {
		return nil, err
	}
	return codes, nil
}

// Devices lists the caller's trusted devices.
func (s *Service) Devices(ctx context.Context) ([]Device, error) {
	u, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListDevices(ctx, u.ID, s.now())
}

// RevokeDevice removes one of the caller's trusted devices.
func (s *Service) RevokeDevice(ctx context.Context, id string) error {
	u, err := s.current(ctx)
	if err != nil {
		return err
	}
	if err := s.store.RevokeDevice(ctx, u.ID, id); err != nil {
		return err
	}
	s.audit.Security(ctx, audit.EventDeviceRevoked, u.Username, "revoked device "+id, u.ID)
	return nil
}

// RevokeAllDevices removes every trusted device of the caller.
func (s *Service) RevokeAllDevices(ctx context.Context) (int, error) {
	u, err := s.current(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.store.RevokeAllDevices(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	s.audit.Security(ctx, audit.EventDeviceRevoked, u.Username, "revoked all devices", u.ID)
	return n, nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (users.Usuario, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return users.Usuario{}, false, nil
	}
	u, err := s.users.Store().GetByLogin(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return users.Usuario{}, false, nil
	}
	if err != nil {
		return users.Usuario{}, false, err
	}
	return u, strings.EqualFold(u.Email, email), nil
}

// RequestRecovery mails a recovery code to an active account with email.
// It reports success whether or not the account exists.
func (s *Service) RequestRecovery(ctx context.Context, email string) error {
	u, ok, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !ok || u.Estado != users.EstadoActivo {
		s.logger.Debug().Msg("recovery requested for unknown or inactive account")
		return nil
	}
	code, err := password.RandomDigits(recoveryCodeLength)
	if err != nil {
		return err
	}
	hash, err := password.Hash(code)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.store.InsertRecovery(ctx, u.ID, hash, now, now.Add(s.cfg.RecoveryCodeTTL)); err != nil {
		return err
	}
	s.audit.Security(ctx, audit.EventRecoveryRequested, u.Username, "requested recovery code", u.ID)
	if s.mailer == nil {
		return nil
	}
	err = s.mailer.Send(ctx, notify.Mail{
		To:      u.Email,
		Subject: "Código de recuperación",
		Body: fmt.Sprintf("Su código de recuperación es %s. Vence en %d minutos.\n",
			code, int(s.cfg.RecoveryCodeTTL.Minutes())),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64(xglog.FieldUserID, u.ID).Msg("send recovery mail")
	}
	return nil
}

// verifyRecovery checks code against the newest active recovery code of email.
func (s *Service) verifyRecovery(ctx context.Context, email, code string) (users.Usuario, error) {
	u, ok, err := s.userByEmail(ctx, email)
	if err != nil {
		return users.Usuario{}, err
	}
	if !ok || u.Estado != users.EstadoActivo {
		return users.Usuario{}, errBadRecovery
	}
	c, found, err := s.store.ActiveRecovery(ctx, u.ID, s.now())
	if err != nil {
		return users.Usuario{}, err
	}
	if !found {
		return users.Usuario{}, errBadRecovery
	}
	max := s.cfg.RecoveryMaxTries
	if max <= 0 {
		max = 5
	}
	if c.Intentos >= max {
		s.audit.Security(ctx, audit.EventRecoveryFailed, u.Username, "recovery code attempts exhausted", u.ID)
		return users.Usuario{}, errBadRecovery
	}
	if !password.Verify(c.Hash, strings.TrimSpace(code)) {
		if err := s.store.RecordRecoveryAttempt(ctx, c.ID); err != nil {
			return users.Usuario{}, err
		}
		s.audit.Security(ctx, audit.EventRecoveryFailed, u.Username, "wrong recovery code", u.ID)
		return users.Usuario{}, errBadRecovery
	}
	used, err := s.store.UseRecovery(ctx, c.ID, s.now())
	if err != nil {
		return users.Usuario{}, err
	}
	if !used {
		return users.Usuario{}, errBadRecovery
	}
	return u, nil
}

// ResetPassword sets a new password using a recovery code and ends every
// session and trusted device of the account.
func (s *Service) ResetPassword(ctx context.Context, email, code, next string) error {
	if err := password.Validate(next); err != nil {
		return err
	}
	u, err := s.verifyRecovery(ctx, email, code)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, u.ID, next); err != nil {
		return err
	}
	if err := s.lockout.Reset(ctx, accountKey(&u, "")); err != nil {
		s.logger.Warn().Err(err).Int64(xglog.FieldUserID, u.ID).Msg("reset lockout")
	}
	s.audit.Security(ctx, audit.EventRecoveryCompleted, u.Username, "reset password with recovery code", u.ID)
	return nil
}

// Recover2FA disables 2FA using a recovery code so the user can enroll again.
func (s *Service) Recover2FA(ctx context.Context, email, code string) error {
	u, err := s.verifyRecovery(ctx, email, code)
	if err != nil {
		return err
	}
	if err := s.clearSecondFactor(ctx, u.ID); err != nil {
		return err
	}
	if err := s.lockout.Reset(ctx, accountKey(&u, "")); err != nil {
		s.logger.Warn().Err(err).Int64(xglog.FieldUserID, u.ID).Msg("reset lockout")
	}
	s.audit.Security(ctx, audit.EventTwoFactorDisabled, u.Username, "disabled two-factor authentication with recovery code", u.ID)
	return nil
}

// PurgeReport counts rows removed by Purge.
type PurgeReport struct {
	Sessions      int
	Devices       int
	RecoveryCodes int
}

// Purge drops expired sessions, trusted devices and recovery codes.
func (s *Service) Purge(ctx context.Context) (PurgeReport, error) {
	now := s.now()
	var r PurgeReport
	var err error
	if r.Sessions, err = s.sessions.Purge(ctx, now); err != nil {
		return r, fmt.Errorf("purge sessions: %w", err)
	}
	if r.Devices, r.RecoveryCodes, err = s.store.Purge(ctx, now); err != nil {
		return r, fmt.Errorf("purge credentials: %w", err)
	}
	return r, nil
}

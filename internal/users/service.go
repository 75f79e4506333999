// SPDX-License-Identifier: MIT

package users

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/auth/password"
	"github.com/seedlab/seedlab/internal/authz"
	"github.com/seedlab/seedlab/internal/config"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/notify"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/validate"
)

// Revoker ends every session and trusted device of a user.
type Revoker interface {
	RevokeUser(ctx context.Context, userID int64) error
}

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID int64, d notify.Draft) (notify.Notificacion, error)
	NotifyRole(ctx context.Context, role string, d notify.Draft) (int, error)
}

// Service manages accounts. revoker and notifier may be nil.
type Service struct {
	store    *Store
	revoker  Revoker
	notifier Notifier
	audit    *audit.Logger
	logger   zerolog.Logger
}

func NewService(store *Store, revoker Revoker, notifier Notifier, auditLog *audit.Logger) *Service {
	return &Service{
		store:    store,
		revoker:  revoker,
		notifier: notifier,
		audit:    auditLog,
		logger:   xglog.WithComponent("users"),
	}
}

// Store exposes persistence to the authentication flow.
func (s *Service) Store() *Store { return s.store }

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

func (in *RegisterInput) normalize() error {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Apellido = strings.TrimSpace(in.Apellido)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	v := validate.New()
	v.NotEmpty("nombre", in.Nombre)
	v.MaxLen("nombre", in.Nombre, 100)
	v.MaxLen("apellido", in.Apellido, 100)
	v.Check(usernamePattern.MatchString(in.Username), "username", "3-50 letters, digits, dots, dashes or underscores")
	v.Email("email", in.Email)
	if err := v.AppErr(); err != nil {
		return err
	}
	return password.Validate(in.Password)
}

func (s *Service) actor(ctx context.Context) (authz.Principal, error) {
	p, ok := authz.PrincipalFrom(ctx)
	if !ok {
		return authz.Principal{}, apperr.Unauthorized("authentication required")
	}
	return p, nil
}

// Register creates a pending account and tells administrators.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Usuario, error) {
	if err := in.normalize(); err != nil {
		return Usuario{}, err
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return Usuario{}, err
	}
	u, err := s.store.Create(ctx, Usuario{
		Nombre:       in.Nombre,
		Apellido:     in.Apellido,
		Username:     in.Username,
		Email:        in.Email,
		Rol:          authz.RoleObservador,
		Estado:       EstadoPendiente,
		PasswordHash: hash,
	})
	if err != nil {
		return Usuario{}, err
	}
	s.logger.Info().Int64(xglog.FieldUserID, u.ID).Str(xglog.FieldUsername, u.Username).Msg("registration pending approval")
	if s.notifier != nil {
		if _, err := s.notifier.NotifyRole(ctx, authz.RoleAdmin, notify.Draft{
			Tipo:    notify.TipoUsuarioPendiente,
			Titulo:  "Nuevo usuario pendiente de aprobación",
			Mensaje: fmt.Sprintf("%s %s (%s) solicitó acceso.", u.Nombre, u.Apellido, u.Username),
		}); err != nil {
			s.logger.Warn().Err(err).Msg("notify admins of registration")
		}
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (Usuario, error) {
	return s.store.Get(ctx, id)
}

// List returns a filtered page of users.
func (s *Service) List(ctx context.Context, f Filter, p page.Request) (page.Result[Usuario], error) {
	return s.store.List(ctx, f, p.Normalize())
}

// CountPending counts registrations awaiting approval.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.store.CountByEstado(ctx, EstadoPendiente)
}

func checkRole(rol string) (string, error) {
	rol = strings.ToUpper(strings.TrimSpace(rol))
	if !authz.ValidRole(rol) {
		return "", apperr.Invalid("unknown role %q", rol).WithField("rol", "must be ADMIN, ANALISTA or OBSERVADOR")
	}
	return rol, nil
}

// Approve activates a pending account with rol.
func (s *Service) Approve(ctx context.Context, id int64, rol string) (Usuario, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return Usuario{}, err
	}
	if rol, err = checkRole(rol); err != nil {
		return Usuario{}, err
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return Usuario{}, err
	}
	if u.Estado != EstadoPendiente {
		return Usuario{}, apperr.Conflict("usuario %d is %s, not pending", id, u.Estado)
	}
	if err := s.store.SetEstadoRol(ctx, id, EstadoActivo, rol); err != nil {
		return Usuario{}, err
	}
	s.audit.UserAdmin(ctx, audit.EventUserApproved, actor.Username, id, map[string]string{"rol": rol})
	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, id, notify.Draft{
			Tipo:   notify.TipoUsuarioAprobado,
			Titulo: "Tu cuenta fue aprobada",
		}); err != nil {
			s.logger.Warn().Err(err).Int64(xglog.FieldUserID, id).Msg("notify approved user")
		}
	}
	return s.store.Get(ctx, id)
}

// Reject closes a pending registration.
func (s *Service) Reject(ctx context.Context, id int64) (Usuario, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return Usuario{}, err
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return Usuario{}, err
	}
	if u.Estado != EstadoPendiente {
		return Usuario{}, apperr.Conflict("usuario %d is %s, not pending", id, u.Estado)
	}
	if err := s.store.SetEstadoRol(ctx, id, EstadoInactivo, u.Rol); err != nil {
		return Usuario{}, err
	}
	s.audit.UserAdmin(ctx, audit.EventUserRejected, actor.Username, id, nil)
	return s.store.Get(ctx, id)
}

// setEstadoRol writes the change, refusing it when it would leave no active
// administrator.
func (s *Service) setEstadoRol(ctx context.Context, u Usuario, estado Estado, rol string) error {
	if u.Rol == authz.RoleAdmin && u.Estado == EstadoActivo && (rol != authz.RoleAdmin || estado != EstadoActivo) {
		return s.store.SetEstadoRolKeepingAdmin(ctx, u.ID, estado, rol)
	}
	return s.store.SetEstadoRol(ctx, u.ID, estado, rol)
}

func (s *Service) revoke(ctx context.Context, id int64) {
	if s.revoker == nil {
		return
	}
	if err := s.revoker.RevokeUser(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64(xglog.FieldUserID, id).Msg("revoke user sessions")
	}
}

// ChangeRole assigns rol to a user and ends their sessions.
func (s *Service) ChangeRole(ctx context.Context, id int64, rol string) (Usuario, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return Usuario{}, err
	}
	if rol, err = checkRole(rol); err != nil {
		return Usuario{}, err
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return Usuario{}, err
	}
	if u.Rol == rol {
		return u, nil
	}
	if err := s.setEstadoRol(ctx, u, u.Estado, rol); err != nil {
		return Usuario{}, err
	}
	s.revoke(ctx, id)
	s.audit.UserAdmin(ctx, audit.EventUserRoleChanged, actor.Username, id, map[string]string{"from": u.Rol, "to": rol})
	return s.store.Get(ctx, id)
}

// Deactivate disables an account and ends its sessions.
func (s *Service) Deactivate(ctx context.Context, id int64) (Usuario, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return Usuario{}, err
	}
	if actor.UserID == id {
		return Usuario{}, apperr.Conflict("cannot deactivate your own account")
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return Usuario{}, err
	}
	if u.Estado == EstadoInactivo {
		return u, nil
	}
	if err := s.setEstadoRol(ctx, u, EstadoInactivo, u.Rol); err != nil {
		return Usuario{}, err
	}
	s.revoke(ctx, id)
	s.audit.UserAdmin(ctx, audit.EventUserDeactivated, actor.Username, id, nil)
	return s.store.Get(ctx, id)
}

// Reactivate restores a deactivated account.
func (s *Service) Reactivate(ctx context.Context, id int64) (Usuario, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return Usuario{}, err
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return Usuario{}, err
	}
	if u.Estado != EstadoInactivo {
		return Usuario{}, apperr.Conflict("usuario %d is %s, not inactive", id, u.Estado)
	}
	if err := s.store.SetEstadoRol(ctx, id, EstadoActivo, u.Rol); err != nil {
		return Usuario{}, err
	}
	s.audit.UserAdmin(ctx, audit.EventUserReactivated, actor.Username, id, nil)
	return s.store.Get(ctx, id)
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context) (Usuario, error) {
	p, err := s.actor(ctx)
	if err != nil {
		return Usuario{}, err
	}
	return s.store.Get(ctx, p.UserID)
}

// UpdateProfile edits the caller's name and email.
func (s *Service) UpdateProfile(ctx context.Context, in ProfileInput) (Usuario, error) {
	p, err := s.actor(ctx)
	if err != nil {
		return Usuario{}, err
	}
	u, err := s.store.Get(ctx, p.UserID)
	if err != nil {
		return Usuario{}, err
	}
	u.Nombre = strings.TrimSpace(in.Nombre)
	u.Apellido = strings.TrimSpace(in.Apellido)
	u.Email = strings.ToLower(strings.TrimSpace(in.Email))
	v := validate.New()
	v.NotEmpty("nombre", u.Nombre)
	v.MaxLen("nombre", u.Nombre, 100)
	v.MaxLen("apellido", u.Apellido, 100)
	v.Email("email", u.Email)
	if err := v.AppErr(); err != nil {
		return Usuario{}, err
	}
	if err := s.store.UpdateProfile(ctx, u); err != nil {
		return Usuario{}, err
	}
	return s.store.Get(ctx, u.ID)
}

// ChangePassword replaces the caller's password after checking the current
// one, then ends every session and trusted device.
func (s *Service) ChangePassword(ctx context.Context, current, next string) error {
	p, err := s.actor(ctx)
	if err != nil {
		return err
	}
	u, err := s.store.Get(ctx, p.UserID)
	if err != nil {
		return err
	}
	if !password.Verify(u.PasswordHash, current) {
		return apperr.Invalid("current password is incorrect").WithField("currentPassword", "incorrect")
	}
	if err := password.Validate(next); err != nil {
		return err
	}
	if current == next {
		return apperr.Invalid("new password must differ").WithField("password", "must differ from the current one")
	}
	if err := s.SetPassword(ctx, u.ID, next); err != nil {
		return err
	}
	s.audit.Security(ctx, audit.EventPasswordReset, u.Username, "password changed", u.ID)
	return nil
}

// SetPassword hashes and stores next, then revokes sessions and devices.
func (s *Service) SetPassword(ctx context.Context, id int64, next string) error {
	hash, err := password.Hash(next)
	if err != nil {
		return err
	}
	if err := s.store.SetPassword(ctx, id, hash); err != nil {
		return err
	}
	s.revoke(ctx, id)
	return nil
}

// CreateAdmin creates an active administrator.
func (s *Service) CreateAdmin(ctx context.Context, username, email, pw string) (Usuario, error) {
	in := RegisterInput{Nombre: username, Username: username, Email: email, Password: pw}
	if err := in.normalize(); err != nil {
		return Usuario{}, err
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return Usuario{}, err
	}
	return s.store.Create(ctx, Usuario{
		Nombre:       in.Nombre,
		Username:     in.Username,
		Email:        in.Email,
		Rol:          authz.RoleAdmin,
		Estado:       EstadoActivo,
		PasswordHash: hash,
	})
}

// EnsureBootstrapAdmin creates the configured administrator when no active
// administrator exists. It reports whether one was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig) (bool, error) {
	n, err := s.store.CountActiveAdmins(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		s.logger.Warn().Msg("no active administrator and no bootstrap credentials configured")
		return false, nil
	}
	u, err := s.CreateAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	s.logger.Info().Str(xglog.FieldUsername, u.Username).Msg("bootstrap administrator created")
	return true, nil
}

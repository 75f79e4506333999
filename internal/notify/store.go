// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/page"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// Store persists notifications in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Insert addresses d to each user in one transaction.
func (s *Store) Insert(ctx context.Context, userIDs []int64, d Draft) ([]Notificacion, error) {
	created := s.now().UTC()
	out := make([]Notificacion, 0, len(userIDs))
	err := sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, uid := range userIDs {
			n := Notificacion{
				ID:         uuid.NewString(),
				UsuarioID:  uid,
				Tipo:       d.Tipo,
				Titulo:     d.Titulo,
				Mensaje:    d.Mensaje,
				AnalisisID: d.AnalisisID,
				CreadaEn:   created,
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO notificaciones (id, usuario_id, tipo, titulo, mensaje, analisis_id, leida, creada_en)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
				n.ID, n.UsuarioID, n.Tipo, n.Titulo, n.Mensaje, n.AnalisisID, sqlite.FormatTime(created)); err != nil {
				return err
			}
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListForUser returns a page of a user's notifications, newest first.
func (s *Store) ListForUser(ctx context.Context, userID int64, f Filter, p page.Request) (page.Result[Notificacion], error) {
	b := sqlite.Builder.Select("id", "usuario_id", "tipo", "titulo", "mensaje", "analisis_id", "leida", "creada_en").
		From("notificaciones").
		Where(sq.Eq{"usuario_id": userID})
	if f.SoloNoLeidas {
		b = b.Where(sq.Eq{"leida": 0})
	}
	total, err := sqlite.Count(ctx, s.db, b)
	if err != nil {
		return page.Result[Notificacion]{}, err
	}
	rows, err := sqlite.Query(ctx, s.db, b.OrderBy("creada_en DESC", "id").Limit(p.Limit()).Offset(p.Offset()))
	if err != nil {
		return page.Result[Notificacion]{}, err
	}
	defer func() { _ = rows.Close() }()

	var items []Notificacion
	for rows.Next() {
		var n Notificacion
		var analisis sql.NullInt64
		var leida int
		var creada string
		if err := rows.Scan(&n.ID, &n.UsuarioID, &n.Tipo, &n.Titulo, &n.Mensaje, &analisis, &leida, &creada); err != nil {
			return page.Result[Notificacion]{}, err
		}
		if analisis.Valid {
			id := analisis.Int64
			n.AnalisisID = &id
		}
		n.Leida = leida == 1
		n.CreadaEn = sqlite.ParseTime(creada)
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return page.Result[Notificacion]{}, err
	}
	return page.NewResult(items, p, total), nil
}

// CountUnread counts a user's unread notifications.
func (s *Store) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notificaciones WHERE usuario_id = ? AND leida = 0`, userID).Scan(&n)
	return n, err
}

// MarkRead marks one of the user's notifications as read.
func (s *Store) MarkRead(ctx context.Context, userID int64, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notificaciones SET leida = 1 WHERE id = ? AND usuario_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("notificacion", id)
	}
	return nil
}

// MarkAllRead marks every notification of the user as read and returns how many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notificaciones SET leida = 1 WHERE usuario_id = ? AND leida = 0`, userID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete removes one of the user's notifications.
func (s *Store) Delete(ctx context.Context, userID int64, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notificaciones WHERE id = ? AND usuario_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("notificacion", id)
	}
	return nil
}

// PurgeRead deletes read notifications created before cutoff.
func (s *Store) PurgeRead(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notificaciones WHERE leida = 1 AND creada_en < ?`, sqlite.FormatTime(cutoff))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ActiveUsersByRole returns ids of active users holding role.
func (s *Store) ActiveUsersByRole(ctx context.Context, role string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM usuarios WHERE rol = ? AND estado = 'ACTIVO' ORDER BY id`, role)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

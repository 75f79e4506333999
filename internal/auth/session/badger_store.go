// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists sessions in an embedded badger database.
//   - sessions: key = "sess:<id>" (JSON) with TTL
//   - user index: key = "user:<userID>:<id>" with the same TTL
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("badger session store requires a path")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func sessKey(id string) []byte { return []byte("sess:" + id) }

func userPrefix(userID int64) []byte {
	return []byte("user:" + strconv.FormatInt(userID, 10) + ":")
}

func userKey(userID int64, id string) []byte {
	return append(userPrefix(userID), id...)
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("session store closed")
	}
	return nil
}

func (s *BadgerStore) Put(_ context.Context, sess Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	buf, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(sessKey(sess.ID), buf).WithTTL(ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(userKey(sess.UserID, sess.ID), nil).WithTTL(ttl))
	})
}

func (s *BadgerStore) Take(_ context.Context, id string) (Session, error) {
	var out Session
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(sessKey(id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		}); err != nil {
			return err
		}
		if err := txn.Delete(sessKey(id)); err != nil {
			return err
		}
		return txn.Delete(userKey(out.UserID, id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if out.Expired(s.now()) {
		return Session{}, ErrNotFound
	}
	return out, nil
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(sessKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var sess Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		}); err != nil {
			return err
		}
		if err := txn.Delete(sessKey(id)); err != nil {
			return err
		}
		return txn.Delete(userKey(sess.UserID, id))
	})
}

func (s *BadgerStore) DeleteUser(ctx context.Context, userID int64) (int, error) {
	prefix := userPrefix(userID)
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(sessKey(id)); err != nil {
				return err
			}
			if err := txn.Delete(userKey(userID, id)); err != nil {
				return err
			}
		}
		return nil
	})
	return len(ids), err
}

// Purge deletes sessions past their recorded expiry. Badger TTLs already hide
// them from reads; this reclaims the keys eagerly.
func (s *BadgerStore) Purge(ctx context.Context, now time.Time) (int, error) {
	prefix := []byte("sess:")
	var expired []Session
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var sess Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			}); err != nil {
				continue
			}
			if sess.Expired(now) {
				expired = append(expired, sess)
			}
		}
		return nil
	})
	if err != nil || len(expired) == 0 {
		return 0, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, sess := range expired {
			if err := txn.Delete(sessKey(sess.ID)); err != nil {
				return err
			}
			if err := txn.Delete(userKey(sess.UserID, sess.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	return len(expired), err
}

var _ Store = (*BadgerStore)(nil)

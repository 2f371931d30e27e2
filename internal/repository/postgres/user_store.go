package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
)

// UserStore reads user profiles and maintains the per-user sync watermark.
type UserStore struct{ q Querier }

// NewUserStore constructs a user store over a pool or transaction.
func NewUserStore(q Querier) *UserStore { return &UserStore{q: q} }

// Get loads a user's profile and watermark.
func (s *UserStore) Get(ctx context.Context, userID int64) (*model.User, error) {
	const q = `SELECT id, name, email, phone_number, store_name, store_address, last_sync_time FROM users WHERE id=$1`

	var u model.User
	err := s.q.QueryRow(ctx, q, userID).Scan(&u.ID, &u.Name, &u.Email,
		&u.PhoneNumber, &u.StoreName, &u.StoreAddress, &u.LastSyncTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LastSyncTime returns the user's watermark; nil means the user never synced.
func (s *UserStore) LastSyncTime(ctx context.Context, userID int64) (*time.Time, error) {
	const q = `SELECT last_sync_time FROM users WHERE id=$1`

	var t *time.Time
	err := s.q.QueryRow(ctx, q, userID).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SetLastSyncTime advances the user's watermark.
func (s *UserStore) SetLastSyncTime(ctx context.Context, userID int64, t time.Time) error {
	const q = `UPDATE users SET last_sync_time=$1 WHERE id=$2`

	tag, err := s.q.Exec(ctx, q, t, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ClearLastSyncTime resets the watermark, forcing a full download on the next sync.
func (s *UserStore) ClearLastSyncTime(ctx context.Context, userID int64) error {
	const q = `UPDATE users SET last_sync_time=NULL WHERE id=$1`

	tag, err := s.q.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/sync-server/internal/errs"
)

func TestUserStore_Get_OK(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewUserStore(mock)

	last := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, email, phone_number, store_name, store_address, last_sync_time FROM users WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "phone_number", "store_name", "store_address", "last_sync_time"}).
			AddRow(int64(1), "Budi", "budi@example.com", "0812", "Warung Budi", "Jl. Merdeka 1", &last))

	u, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Budi", u.Name)
	require.NotNil(t, u.LastSyncTime)
}

func TestUserStore_Get_NotFound(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewUserStore(mock)

	mock.ExpectQuery(`SELECT id, name, email, phone_number, store_name, store_address, last_sync_time FROM users WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), 1)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserStore_LastSyncTime_NeverSynced(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewUserStore(mock)

	mock.ExpectQuery(`SELECT last_sync_time FROM users WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"last_sync_time"}).AddRow((*time.Time)(nil)))

	ts, err := s.LastSyncTime(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, ts)
}

func TestUserStore_SetLastSyncTime(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewUserStore(mock)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE users SET last_sync_time=\$1 WHERE id=\$2`).
		WithArgs(now, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetLastSyncTime(context.Background(), 1, now))
}

func TestUserStore_SetLastSyncTime_UnknownUser(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewUserStore(mock)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE users SET last_sync_time=\$1 WHERE id=\$2`).
		WithArgs(now, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, s.SetLastSyncTime(context.Background(), 99, now), errs.ErrNotFound)
}

func TestUserStore_ClearLastSyncTime(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewUserStore(mock)

	mock.ExpectExec(`UPDATE users SET last_sync_time=NULL WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.ClearLastSyncTime(context.Background(), 1))
}

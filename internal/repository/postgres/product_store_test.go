package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestProductStore_Insert_OK(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	ctx := context.Background()
	now := time.Now().UTC()
	created := now.Add(-time.Hour)

	mock.ExpectQuery(`INSERT INTO products`).
		WithArgs(int64(1), "Kopi Susu", "K-001", int64(10), 8000.0, 12000.0, (*string)(nil), created, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(55)))

	id, err := s.Insert(ctx, 1, &model.LocalProduct{
		LocalID: 3, NamaProduk: "Kopi Susu", KodeProduk: "K-001",
		JumlahProduk: 10, HargaModal: 8000, HargaJual: 12000,
		CreatedAt: &created, UpdatedAt: &now,
	}, now)
	require.NoError(t, err)
	require.Equal(t, int64(55), id)
}

func TestProductStore_Insert_MissingTimestampsFallBack(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO products`).
		WithArgs(int64(1), "Teh", "T-1", int64(0), 0.0, 0.0, (*string)(nil), now, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	_, err := s.Insert(context.Background(), 1, &model.LocalProduct{NamaProduk: "Teh", KodeProduk: "T-1"}, now)
	require.NoError(t, err)
}

func TestProductStore_Insert_DuplicateCode(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO products`).
		WithArgs(int64(1), "Kopi", "K-001", int64(0), 0.0, 0.0, (*string)(nil), now, now).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.Insert(context.Background(), 1, &model.LocalProduct{NamaProduk: "Kopi", KodeProduk: "K-001"}, now)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestProductStore_Update_OK_And_NotFound(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	ctx := context.Background()
	now := time.Now().UTC()
	p := &model.LocalProduct{ServerID: 9, NamaProduk: "Kopi", KodeProduk: "K-001", JumlahProduk: 4, HargaModal: 8000, HargaJual: 12000}

	mock.ExpectExec(`UPDATE products SET nama_produk=\$1`).
		WithArgs("Kopi", "K-001", int64(4), 8000.0, 12000.0, (*string)(nil), now, int64(9), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	found, err := s.Update(ctx, 1, p, now)
	require.NoError(t, err)
	require.True(t, found)

	mock.ExpectExec(`UPDATE products SET nama_produk=\$1`).
		WithArgs("Kopi", "K-001", int64(4), 8000.0, 12000.0, (*string)(nil), now, int64(9), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	found, err = s.Update(ctx, 1, p, now)
	require.NoError(t, err)
	require.False(t, found)
}

func TestProductStore_SoftDelete_BumpsUpdatedAt(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE products SET deleted_at=\$1, updated_at=\$1 WHERE id=\$2 AND user_id=\$3`).
		WithArgs(now, int64(9), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	found, err := s.SoftDelete(context.Background(), 1, 9, now)
	require.NoError(t, err)
	require.True(t, found)
}

func TestProductStore_Get_NotFound(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	mock.ExpectQuery(`SELECT .+ FROM products WHERE id=\$1 AND user_id=\$2`).
		WithArgs(int64(9), int64(1)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), 1, 9)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestProductStore_ChangedSince(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	since := time.Now().UTC().Add(-time.Hour)
	ts := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "nama_produk", "kode_produk", "jumlah_produk", "harga_modal", "harga_jual", "gambar_produk", "created_at", "updated_at", "deleted_at"}).
		AddRow(int64(1), "Kopi", "K-001", int64(5), 8000.0, 12000.0, (*string)(nil), ts, ts, (*time.Time)(nil)).
		AddRow(int64(2), "Teh", "T-001", int64(3), 2000.0, 4000.0, (*string)(nil), ts, ts, &ts)

	mock.ExpectQuery(`SELECT .+ FROM products WHERE user_id=\$1 AND updated_at > \$2 ORDER BY updated_at ASC`).
		WithArgs(int64(1), since).
		WillReturnRows(rows)

	out, err := s.ChangedSince(context.Background(), 1, since)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Kopi", out[0].NamaProduk)
	require.Nil(t, out[0].DeletedAt)
	require.NotNil(t, out[1].DeletedAt)
	require.Equal(t, int64(1), out[0].UserID)
}

func TestProductStore_ApplySnapshot(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE products SET nama_produk=\$1, kode_produk=\$2, jumlah_produk=\$3, harga_modal=\$4, harga_jual=\$5, updated_at=\$6`).
		WithArgs("Kopi", "K-001", int64(8), 8000.0, 12000.0, now, int64(9), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	found, err := s.ApplySnapshot(context.Background(), 1, 9, &model.Product{
		NamaProduk: "Kopi", KodeProduk: "K-001", JumlahProduk: 8, HargaModal: 8000, HargaJual: 12000,
	}, now)
	require.NoError(t, err)
	require.True(t, found)
}

func TestProductStore_Counts(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE deleted_at IS NULL\) FROM products WHERE user_id=\$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"count", "active"}).AddRow(int64(12), int64(10)))

	total, active, err := s.Counts(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(12), total)
	require.Equal(t, int64(10), active)
}

func TestProductStore_CountPending_QueryErr(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewProductStore(mock)

	since := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products WHERE user_id=\$1 AND updated_at > \$2`).
		WithArgs(int64(1), since).
		WillReturnError(errors.New("boom"))

	_, err := s.CountPending(context.Background(), 1, since)
	require.Error(t, err)
}

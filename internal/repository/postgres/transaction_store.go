package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
)

// TransactionStore reads and writes sales transaction rows scoped to one owning user.
type TransactionStore struct{ q Querier }

// NewTransactionStore constructs a transaction store over a pool or transaction.
func NewTransactionStore(q Querier) *TransactionStore { return &TransactionStore{q: q} }

const transactionCols = `id, tanggal_transaksi, total_belanja, total_modal, metode_pembayaran, status_pembayaran, id_pelanggan, detail_items, jumlah_bayar, jumlah_kembali, id_transaksi_hutang, created_at, updated_at, deleted_at`

func scanTransaction(row pgx.Row, userID int64) (*model.Transaction, error) {
	t := model.Transaction{UserID: userID}
	err := row.Scan(&t.ID, &t.TanggalTransaksi, &t.TotalBelanja, &t.TotalModal,
		&t.MetodePembayaran, &t.StatusPembayaran, &t.IDPelanggan, &t.DetailItems,
		&t.JumlahBayar, &t.JumlahKembali, &t.IDTransaksiHutang,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert creates a transaction row and returns the server-assigned id.
// customerID is the already-resolved server identity of the referenced
// customer, or nil when no mapping was found.
func (s *TransactionStore) Insert(ctx context.Context, userID int64, t *model.LocalTransaction, customerID *int64, now time.Time) (int64, error) {
	const q = `INSERT INTO transactions (user_id, tanggal_transaksi, total_belanja, total_modal, metode_pembayaran, status_pembayaran, id_pelanggan, detail_items, jumlah_bayar, jumlah_kembali, id_transaksi_hutang, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`

	var id int64
	err := s.q.QueryRow(ctx, q, userID, t.TanggalTransaksi, t.TotalBelanja, t.TotalModal,
		t.MetodePembayaran, t.StatusPembayaran, customerID, []byte(t.DetailItems),
		t.JumlahBayar, t.JumlahKembali, t.IDTransaksiHutang,
		timeOr(t.CreatedAt, now), timeOr(t.UpdatedAt, now)).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update applies the payment fields, the only mutable ones after a sale is
// recorded, to the row matched by (id, user_id).
func (s *TransactionStore) Update(ctx context.Context, userID int64, t *model.LocalTransaction, now time.Time) (bool, error) {
	const q = `UPDATE transactions SET status_pembayaran=$1, jumlah_bayar=$2, jumlah_kembali=$3, updated_at=$4 WHERE id=$5 AND user_id=$6`

	tag, err := s.q.Exec(ctx, q, t.StatusPembayaran, t.JumlahBayar, t.JumlahKembali,
		timeOr(t.UpdatedAt, now), t.ServerID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDelete marks the row deleted and bumps updated_at so the deletion syncs.
func (s *TransactionStore) SoftDelete(ctx context.Context, userID, id int64, now time.Time) (bool, error) {
	const q = `UPDATE transactions SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND user_id=$3`

	tag, err := s.q.Exec(ctx, q, now, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the current server row by (id, user_id).
func (s *TransactionStore) Get(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	const q = `SELECT ` + transactionCols + ` FROM transactions WHERE id=$1 AND user_id=$2`

	t, err := scanTransaction(s.q.QueryRow(ctx, q, id, userID), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return t, err
}

// ChangedSince returns all rows mutated strictly after the watermark, oldest first.
func (s *TransactionStore) ChangedSince(ctx context.Context, userID int64, since time.Time) ([]model.Transaction, error) {
	const q = `SELECT ` + transactionCols + ` FROM transactions WHERE user_id=$1 AND updated_at > $2 ORDER BY updated_at ASC`

	rows, err := s.q.Query(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ApplySnapshot overwrites the reviewable fields with a resolved snapshot.
func (s *TransactionStore) ApplySnapshot(ctx context.Context, userID, id int64, t *model.Transaction, now time.Time) (bool, error) {
	const q = `UPDATE transactions SET total_belanja=$1, status_pembayaran=$2, metode_pembayaran=$3, updated_at=$4 WHERE id=$5 AND user_id=$6`

	tag, err := s.q.Exec(ctx, q, t.TotalBelanja, t.StatusPembayaran, t.MetodePembayaran, now, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountPending counts rows mutated after the watermark.
func (s *TransactionStore) CountPending(ctx context.Context, userID int64, since time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM transactions WHERE user_id=$1 AND updated_at > $2`

	var n int64
	err := s.q.QueryRow(ctx, q, userID, since).Scan(&n)
	return n, err
}

// Counts returns total and non-deleted row counts for the user.
func (s *TransactionStore) Counts(ctx context.Context, userID int64) (total, active int64, err error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE deleted_at IS NULL) FROM transactions WHERE user_id=$1`

	err = s.q.QueryRow(ctx, q, userID).Scan(&total, &active)
	return total, active, err
}

// ListActive returns all non-deleted rows for export.
func (s *TransactionStore) ListActive(ctx context.Context, userID int64) ([]model.Transaction, error) {
	const q = `SELECT ` + transactionCols + ` FROM transactions WHERE user_id=$1 AND deleted_at IS NULL ORDER BY id`

	rows, err := s.q.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

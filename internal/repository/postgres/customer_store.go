package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
)

// CustomerStore reads and writes customer rows scoped to one owning user.
type CustomerStore struct{ q Querier }

// NewCustomerStore constructs a customer store over a pool or transaction.
func NewCustomerStore(q Querier) *CustomerStore { return &CustomerStore{q: q} }

const customerCols = `id, nama_pelanggan, nomor_telepon, created_at, updated_at, deleted_at`

func scanCustomer(row pgx.Row, userID int64) (*model.Customer, error) {
	c := model.Customer{UserID: userID}
	err := row.Scan(&c.ID, &c.NamaPelanggan, &c.NomorTelepon, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Insert creates a customer row and returns the server-assigned id.
func (s *CustomerStore) Insert(ctx context.Context, userID int64, c *model.LocalCustomer, now time.Time) (int64, error) {
	const q = `INSERT INTO customers (user_id, nama_pelanggan, nomor_telepon, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`

	var id int64
	err := s.q.QueryRow(ctx, q, userID, c.NamaPelanggan, c.NomorTelepon,
		timeOr(c.CreatedAt, now), timeOr(c.UpdatedAt, now)).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, errs.ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

// Update applies mutable fields to the row matched by (id, user_id).
func (s *CustomerStore) Update(ctx context.Context, userID int64, c *model.LocalCustomer, now time.Time) (bool, error) {
	const q = `UPDATE customers SET nama_pelanggan=$1, nomor_telepon=$2, updated_at=$3 WHERE id=$4 AND user_id=$5`

	tag, err := s.q.Exec(ctx, q, c.NamaPelanggan, c.NomorTelepon, timeOr(c.UpdatedAt, now), c.ServerID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDelete marks the row deleted and bumps updated_at so the deletion syncs.
func (s *CustomerStore) SoftDelete(ctx context.Context, userID, id int64, now time.Time) (bool, error) {
	const q = `UPDATE customers SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND user_id=$3`

	tag, err := s.q.Exec(ctx, q, now, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether a customer row exists for (id, user_id).
func (s *CustomerStore) Exists(ctx context.Context, userID, id int64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM customers WHERE id=$1 AND user_id=$2)`

	var ok bool
	err := s.q.QueryRow(ctx, q, id, userID).Scan(&ok)
	return ok, err
}

// Get returns the current server row by (id, user_id).
func (s *CustomerStore) Get(ctx context.Context, userID, id int64) (*model.Customer, error) {
	const q = `SELECT ` + customerCols + ` FROM customers WHERE id=$1 AND user_id=$2`

	c, err := scanCustomer(s.q.QueryRow(ctx, q, id, userID), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return c, err
}

// ChangedSince returns all rows mutated strictly after the watermark, oldest first.
func (s *CustomerStore) ChangedSince(ctx context.Context, userID int64, since time.Time) ([]model.Customer, error) {
	const q = `SELECT ` + customerCols + ` FROM customers WHERE user_id=$1 AND updated_at > $2 ORDER BY updated_at ASC`

	rows, err := s.q.Query(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ApplySnapshot overwrites the mutable fields with a resolved snapshot.
func (s *CustomerStore) ApplySnapshot(ctx context.Context, userID, id int64, c *model.Customer, now time.Time) (bool, error) {
	const q = `UPDATE customers SET nama_pelanggan=$1, nomor_telepon=$2, updated_at=$3 WHERE id=$4 AND user_id=$5`

	tag, err := s.q.Exec(ctx, q, c.NamaPelanggan, c.NomorTelepon, now, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountPending counts rows mutated after the watermark.
func (s *CustomerStore) CountPending(ctx context.Context, userID int64, since time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM customers WHERE user_id=$1 AND updated_at > $2`

	var n int64
	err := s.q.QueryRow(ctx, q, userID, since).Scan(&n)
	return n, err
}

// Counts returns total and non-deleted row counts for the user.
func (s *CustomerStore) Counts(ctx context.Context, userID int64) (total, active int64, err error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE deleted_at IS NULL) FROM customers WHERE user_id=$1`

	err = s.q.QueryRow(ctx, q, userID).Scan(&total, &active)
	return total, active, err
}

// ListActive returns all non-deleted rows for export.
func (s *CustomerStore) ListActive(ctx context.Context, userID int64) ([]model.Customer, error) {
	const q = `SELECT ` + customerCols + ` FROM customers WHERE user_id=$1 AND deleted_at IS NULL ORDER BY id`

	rows, err := s.q.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

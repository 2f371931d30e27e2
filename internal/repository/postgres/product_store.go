package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
)

// ProductStore reads and writes product rows scoped to one owning user.
type ProductStore struct{ q Querier }

// NewProductStore constructs a product store over a pool or transaction.
func NewProductStore(q Querier) *ProductStore { return &ProductStore{q: q} }

const productCols = `id, nama_produk, kode_produk, jumlah_produk, harga_modal, harga_jual, gambar_produk, created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row, userID int64) (*model.Product, error) {
	p := model.Product{UserID: userID}
	err := row.Scan(&p.ID, &p.NamaProduk, &p.KodeProduk, &p.JumlahProduk,
		&p.HargaModal, &p.HargaJual, &p.GambarProduk,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert creates a product row and returns the server-assigned id. Missing
// client timestamps fall back to the captured sync time.
func (s *ProductStore) Insert(ctx context.Context, userID int64, p *model.LocalProduct, now time.Time) (int64, error) {
	const q = `INSERT INTO products (user_id, nama_produk, kode_produk, jumlah_produk, harga_modal, harga_jual, gambar_produk, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`

	var id int64
	err := s.q.QueryRow(ctx, q, userID, p.NamaProduk, p.KodeProduk, p.JumlahProduk,
		p.HargaModal, p.HargaJual, p.GambarProduk,
		timeOr(p.CreatedAt, now), timeOr(p.UpdatedAt, now)).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, errs.ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

// Update applies the client's view of the mutable fields to the row matched
// by (id, user_id). Returns false when no row matched.
func (s *ProductStore) Update(ctx context.Context, userID int64, p *model.LocalProduct, now time.Time) (bool, error) {
	const q = `UPDATE products SET nama_produk=$1, kode_produk=$2, jumlah_produk=$3, harga_modal=$4, harga_jual=$5, gambar_produk=$6, updated_at=$7
WHERE id=$8 AND user_id=$9`

	tag, err := s.q.Exec(ctx, q, p.NamaProduk, p.KodeProduk, p.JumlahProduk,
		p.HargaModal, p.HargaJual, p.GambarProduk, timeOr(p.UpdatedAt, now), p.ServerID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDelete marks the row deleted at the captured sync time. updated_at is
// bumped as well so the deletion propagates to other devices on download.
func (s *ProductStore) SoftDelete(ctx context.Context, userID, id int64, now time.Time) (bool, error) {
	const q = `UPDATE products SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND user_id=$3`

	tag, err := s.q.Exec(ctx, q, now, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the current server row by (id, user_id).
func (s *ProductStore) Get(ctx context.Context, userID, id int64) (*model.Product, error) {
	const q = `SELECT ` + productCols + ` FROM products WHERE id=$1 AND user_id=$2`

	p, err := scanProduct(s.q.QueryRow(ctx, q, id, userID), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return p, err
}

// ChangedSince returns all rows mutated strictly after the watermark,
// oldest first so a truncated download can resume deterministically.
func (s *ProductStore) ChangedSince(ctx context.Context, userID int64, since time.Time) ([]model.Product, error) {
	const q = `SELECT ` + productCols + ` FROM products WHERE user_id=$1 AND updated_at > $2 ORDER BY updated_at ASC`

	rows, err := s.q.Query(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ApplySnapshot overwrites the mutable fields with a resolved snapshot.
func (s *ProductStore) ApplySnapshot(ctx context.Context, userID, id int64, p *model.Product, now time.Time) (bool, error) {
	const q = `UPDATE products SET nama_produk=$1, kode_produk=$2, jumlah_produk=$3, harga_modal=$4, harga_jual=$5, updated_at=$6
WHERE id=$7 AND user_id=$8`

	tag, err := s.q.Exec(ctx, q, p.NamaProduk, p.KodeProduk, p.JumlahProduk,
		p.HargaModal, p.HargaJual, now, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountPending counts rows mutated after the watermark.
func (s *ProductStore) CountPending(ctx context.Context, userID int64, since time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM products WHERE user_id=$1 AND updated_at > $2`

	var n int64
	err := s.q.QueryRow(ctx, q, userID, since).Scan(&n)
	return n, err
}

// Counts returns total and non-deleted row counts for the user.
func (s *ProductStore) Counts(ctx context.Context, userID int64) (total, active int64, err error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE deleted_at IS NULL) FROM products WHERE user_id=$1`

	err = s.q.QueryRow(ctx, q, userID).Scan(&total, &active)
	return total, active, err
}

// ListActive returns all non-deleted rows for export.
func (s *ProductStore) ListActive(ctx context.Context, userID int64) ([]model.Product, error) {
	const q = `SELECT ` + productCols + ` FROM products WHERE user_id=$1 AND deleted_at IS NULL ORDER BY id`

	rows, err := s.q.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// timeOr returns the client timestamp when present, the fallback otherwise.
func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}

package postgres

import (
	"context"
	"time"

	"github.com/kasirku/sync-server/internal/model"
)

// RecentActivity returns the most recently touched records across all three
// entity kinds, newest first, for the data summary view.
func RecentActivity(ctx context.Context, q Querier, userID int64, limit int) ([]model.ActivityItem, error) {
	const sql = `SELECT kind, name, updated_at FROM (
SELECT 'product' AS kind, nama_produk AS name, updated_at FROM products WHERE user_id=$1
UNION ALL
SELECT 'customer' AS kind, nama_pelanggan AS name, updated_at FROM customers WHERE user_id=$1
UNION ALL
SELECT 'transaction' AS kind, 'Transaction #' || id::text AS name, updated_at FROM transactions WHERE user_id=$1
) activity ORDER BY updated_at DESC LIMIT $2`

	rows, err := q.Query(ctx, sql, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ActivityItem
	for rows.Next() {
		var it model.ActivityItem
		var kind string
		var at time.Time
		if err := rows.Scan(&kind, &it.Name, &at); err != nil {
			return nil, err
		}
		it.Kind = model.EntityKind(kind)
		it.UpdatedAt = at
		out = append(out, it)
	}
	return out, rows.Err()
}

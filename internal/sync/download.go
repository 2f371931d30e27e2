package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/kasirku/sync-server/internal/model"
	"github.com/kasirku/sync-server/internal/repository/postgres"
)

// downloadProcessor selects server records mutated after the client's
// watermark and classifies them as new, updated or deleted for the client.
type downloadProcessor struct {
	products     *postgres.ProductStore
	customers    *postgres.CustomerStore
	transactions *postgres.TransactionStore
}

func newDownloadProcessor(q postgres.Querier) *downloadProcessor {
	return &downloadProcessor{
		products:     postgres.NewProductStore(q),
		customers:    postgres.NewCustomerStore(q),
		transactions: postgres.NewTransactionStore(q),
	}
}

// run classifies every row with updated_at past the watermark. A nil
// watermark means the client has nothing and downloads everything.
func (d *downloadProcessor) run(ctx context.Context, userID int64, clientLastSync *time.Time, resp *model.SyncResponse) error {
	watermark := epoch
	if clientLastSync != nil {
		watermark = *clientLastSync
	}

	products, err := d.products.ChangedSince(ctx, userID, watermark)
	if err != nil {
		return fmt.Errorf("download products: %w", err)
	}
	for _, p := range products {
		bucket := &resp.ServerChanges.Products
		switch {
		case p.DeletedAt != nil:
			bucket.Deleted = append(bucket.Deleted, p.ID)
		case p.CreatedAt.After(watermark):
			bucket.New = append(bucket.New, model.NewEntry[model.Product]{Record: &p})
		default:
			bucket.Updated = append(bucket.Updated, p)
		}
		resp.ItemsDownloaded++
	}

	customers, err := d.customers.ChangedSince(ctx, userID, watermark)
	if err != nil {
		return fmt.Errorf("download customers: %w", err)
	}
	for _, c := range customers {
		bucket := &resp.ServerChanges.Customers
		switch {
		case c.DeletedAt != nil:
			bucket.Deleted = append(bucket.Deleted, c.ID)
		case c.CreatedAt.After(watermark):
			bucket.New = append(bucket.New, model.NewEntry[model.Customer]{Record: &c})
		default:
			bucket.Updated = append(bucket.Updated, c)
		}
		resp.ItemsDownloaded++
	}

	transactions, err := d.transactions.ChangedSince(ctx, userID, watermark)
	if err != nil {
		return fmt.Errorf("download transactions: %w", err)
	}
	for _, t := range transactions {
		bucket := &resp.ServerChanges.Transactions
		switch {
		case t.DeletedAt != nil:
			bucket.Deleted = append(bucket.Deleted, t.ID)
		case t.CreatedAt.After(watermark):
			bucket.New = append(bucket.New, model.NewEntry[model.Transaction]{Record: &t})
		default:
			bucket.Updated = append(bucket.Updated, t)
		}
		resp.ItemsDownloaded++
	}

	return nil
}

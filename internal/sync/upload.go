package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
	"github.com/kasirku/sync-server/internal/repository/postgres"
)

// uploadProcessor applies a client's pending mutations to the server store.
// Every per-item failure is caught individually; one item never blocks its
// siblings in the same batch.
type uploadProcessor struct {
	products     *postgres.ProductStore
	customers    *postgres.CustomerStore
	transactions *postgres.TransactionStore
	log          *zap.Logger
}

func newUploadProcessor(q postgres.Querier, log *zap.Logger) *uploadProcessor {
	return &uploadProcessor{
		products:     postgres.NewProductStore(q),
		customers:    postgres.NewCustomerStore(q),
		transactions: postgres.NewTransactionStore(q),
		log:          log,
	}
}

// run processes entity kinds in fixed order: products, then customers, then
// transactions, because transactions reference customers uploaded in the
// same call.
func (u *uploadProcessor) run(ctx context.Context, userID int64, changes *model.LocalChanges, resp *model.SyncResponse, now time.Time) {
	u.uploadProducts(ctx, userID, &changes.Products, resp, now)
	customerIDs := u.uploadCustomers(ctx, userID, &changes.Customers, resp, now)
	u.uploadTransactions(ctx, userID, &changes.Transactions, resp, now, customerIDs)
}

func (u *uploadProcessor) uploadProducts(ctx context.Context, userID int64, b *model.LocalBucket[model.LocalProduct], resp *model.SyncResponse, now time.Time) {
	for i := range b.New {
		p := &b.New[i]
		id, err := u.products.Insert(ctx, userID, p, now)
		if err != nil {
			if errors.Is(err, errs.ErrAlreadyExists) {
				resp.AddError(fmt.Sprintf("failed to upload product %q: duplicate kode_produk", p.NamaProduk))
			} else {
				resp.AddError(fmt.Sprintf("failed to upload product %q: %v", p.NamaProduk, err))
			}
			continue
		}
		resp.ServerChanges.Products.New = append(resp.ServerChanges.Products.New, model.NewEntry[model.Product]{
			Mapping: &model.IDMapping{LocalID: p.LocalID, ServerID: id, Label: p.NamaProduk},
		})
		resp.ItemsUploaded++
	}

	for i := range b.Updated {
		p := &b.Updated[i]
		found, err := u.products.Update(ctx, userID, p, now)
		switch {
		case err != nil:
			resp.AddError(fmt.Sprintf("failed to update product %q: %v", p.NamaProduk, err))
		case !found:
			resp.AddError(fmt.Sprintf("product not found or not owned: %q", p.NamaProduk))
		default:
			resp.ItemsUploaded++
		}
	}

	for _, ref := range b.Deleted {
		found, err := u.products.SoftDelete(ctx, userID, ref.ServerID, now)
		switch {
		case err != nil:
			resp.AddError(fmt.Sprintf("failed to delete product id %d: %v", ref.ServerID, err))
		case !found:
			resp.AddError(fmt.Sprintf("product not found for deletion: id %d", ref.ServerID))
		default:
			resp.ItemsUploaded++
		}
	}
}

// uploadCustomers returns the client-local id to server id map for customers
// created in this call, consumed by transaction uploads.
func (u *uploadProcessor) uploadCustomers(ctx context.Context, userID int64, b *model.LocalBucket[model.LocalCustomer], resp *model.SyncResponse, now time.Time) map[int64]int64 {
	serverIDs := make(map[int64]int64, len(b.New))

	for i := range b.New {
		c := &b.New[i]
		id, err := u.customers.Insert(ctx, userID, c, now)
		if err != nil {
			resp.AddError(fmt.Sprintf("failed to upload customer %q: %v", c.NamaPelanggan, err))
			continue
		}
		serverIDs[c.LocalID] = id
		resp.ServerChanges.Customers.New = append(resp.ServerChanges.Customers.New, model.NewEntry[model.Customer]{
			Mapping: &model.IDMapping{LocalID: c.LocalID, ServerID: id, Label: c.NamaPelanggan},
		})
		resp.ItemsUploaded++
	}

	for i := range b.Updated {
		c := &b.Updated[i]
		found, err := u.customers.Update(ctx, userID, c, now)
		switch {
		case err != nil:
			resp.AddError(fmt.Sprintf("failed to update customer %q: %v", c.NamaPelanggan, err))
		case !found:
			resp.AddError(fmt.Sprintf("customer not found or not owned: %q", c.NamaPelanggan))
		default:
			resp.ItemsUploaded++
		}
	}

	for _, ref := range b.Deleted {
		found, err := u.customers.SoftDelete(ctx, userID, ref.ServerID, now)
		switch {
		case err != nil:
			resp.AddError(fmt.Sprintf("failed to delete customer id %d: %v", ref.ServerID, err))
		case !found:
			resp.AddError(fmt.Sprintf("customer not found for deletion: id %d", ref.ServerID))
		default:
			resp.ItemsUploaded++
		}
	}

	return serverIDs
}

func (u *uploadProcessor) uploadTransactions(ctx context.Context, userID int64, b *model.LocalBucket[model.LocalTransaction], resp *model.SyncResponse, now time.Time, customerIDs map[int64]int64) {
	for i := range b.New {
		t := &b.New[i]
		customerID, err := u.resolveCustomer(ctx, userID, t.IDPelanggan, customerIDs)
		if err != nil {
			resp.AddError(fmt.Sprintf("failed to upload transaction (local id %d): %v", t.LocalID, err))
			continue
		}
		id, err := u.transactions.Insert(ctx, userID, t, customerID, now)
		if err != nil {
			resp.AddError(fmt.Sprintf("failed to upload transaction (local id %d): %v", t.LocalID, err))
			continue
		}
		resp.ServerChanges.Transactions.New = append(resp.ServerChanges.Transactions.New, model.NewEntry[model.Transaction]{
			Mapping: &model.IDMapping{LocalID: t.LocalID, ServerID: id},
		})
		resp.ItemsUploaded++
	}

	for i := range b.Updated {
		t := &b.Updated[i]
		found, err := u.transactions.Update(ctx, userID, t, now)
		switch {
		case err != nil:
			resp.AddError(fmt.Sprintf("failed to update transaction id %d: %v", t.ServerID, err))
		case !found:
			resp.AddError(fmt.Sprintf("transaction not found or not owned: id %d", t.ServerID))
		default:
			resp.ItemsUploaded++
		}
	}

	for _, ref := range b.Deleted {
		found, err := u.transactions.SoftDelete(ctx, userID, ref.ServerID, now)
		switch {
		case err != nil:
			resp.AddError(fmt.Sprintf("failed to delete transaction id %d: %v", ref.ServerID, err))
		case !found:
			resp.AddError(fmt.Sprintf("transaction not found for deletion: id %d", ref.ServerID))
		default:
			resp.ItemsUploaded++
		}
	}
}

// resolveCustomer maps a transaction's customer reference to a server
// identity: first through customers created in this call, then through
// already-synced rows. An unresolvable reference is nulled rather than
// failing the transaction.
func (u *uploadProcessor) resolveCustomer(ctx context.Context, userID int64, ref *int64, customerIDs map[int64]int64) (*int64, error) {
	if ref == nil {
		return nil, nil
	}
	if id, ok := customerIDs[*ref]; ok {
		return &id, nil
	}
	ok, err := u.customers.Exists(ctx, userID, *ref)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %d: %w", *ref, err)
	}
	if !ok {
		u.log.Warn("transaction customer reference not found, nulling",
			zap.Int64("user_id", userID), zap.Int64("customer_id", *ref))
		return nil, nil
	}
	return ref, nil
}

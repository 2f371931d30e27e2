package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
	"github.com/kasirku/sync-server/internal/repository/postgres"
)

// conflictEngine re-examines the client's updated records against current
// server state. Locally-new and locally-deleted records cannot conflict by
// construction, so only the updated buckets are inspected.
type conflictEngine struct {
	products     *postgres.ProductStore
	customers    *postgres.CustomerStore
	transactions *postgres.TransactionStore
	log          *zap.Logger
}

func newConflictEngine(q postgres.Querier, log *zap.Logger) *conflictEngine {
	return &conflictEngine{
		products:     postgres.NewProductStore(q),
		customers:    postgres.NewCustomerStore(q),
		transactions: postgres.NewTransactionStore(q),
		log:          log,
	}
}

func (c *conflictEngine) run(ctx context.Context, userID int64, changes *model.LocalChanges, resp *model.SyncResponse, now time.Time) {
	c.detectProducts(ctx, userID, changes.Products.Updated, resp, now)
	c.detectCustomers(ctx, userID, changes.Customers.Updated, resp, now)
	c.detectTransactions(ctx, userID, changes.Transactions.Updated, resp, now)
}

// withinTolerance treats timestamp gaps up to the tolerance window as
// clock-skew noise rather than independent edits. This is a deliberate
// heuristic substitute for causal ordering.
func withinTolerance(serverAt, localAt time.Time) bool {
	gap := serverAt.Sub(localAt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= conflictTolerance
}

func (c *conflictEngine) detectProducts(ctx context.Context, userID int64, updated []model.LocalProduct, resp *model.SyncResponse, now time.Time) {
	for i := range updated {
		local := &updated[i]
		server, err := c.products.Get(ctx, userID, local.ServerID)
		if errors.Is(err, errs.ErrNotFound) {
			resp.Conflicts = append(resp.Conflicts, model.Conflict{
				EntityKind:         model.KindProduct,
				ConflictType:       model.ConflictMissingOnServer,
				ServerID:           local.ServerID,
				LocalID:            local.LocalID,
				Message:            "product was deleted on server but updated locally",
				ResolutionStrategy: model.ResolutionRecreateOnServer,
				LocalSnapshot:      local,
				Timestamp:          now,
			})
			continue
		}
		if err != nil {
			resp.AddError(fmt.Sprintf("product conflict detection failed for id %d: %v", local.ServerID, err))
			continue
		}

		localAt := localUpdatedAt(local.UpdatedAt, now)
		if withinTolerance(server.UpdatedAt, localAt) {
			continue
		}
		divs := diffProduct(server, local)
		if len(divs) == 0 {
			continue
		}

		resolved, strategy := mergeProduct(server, local, divs, localAt)
		conflict := model.Conflict{
			EntityKind:         model.KindProduct,
			ConflictType:       model.ConflictDataMismatch,
			ServerID:           local.ServerID,
			LocalID:            local.LocalID,
			Message:            fmt.Sprintf("product data diverged in %d field(s)", len(divs)),
			Divergences:        divs,
			ResolutionStrategy: strategy,
			ServerUpdatedAt:    &server.UpdatedAt,
			LocalUpdatedAt:     &localAt,
			ServerSnapshot:     server,
			LocalSnapshot:      local,
			Timestamp:          now,
		}

		if strategy.Auto() {
			conflict.ResolvedSnapshot = resolved
			found, err := c.products.ApplySnapshot(ctx, userID, local.ServerID, resolved, now)
			if err != nil || !found {
				c.log.Error("product conflict auto-resolution write failed",
					zap.Int64("user_id", userID), zap.Int64("product_id", local.ServerID), zap.Error(err))
				resp.AddError(fmt.Sprintf("failed to auto-resolve product conflict for id %d", local.ServerID))
			}
		}
		resp.Conflicts = append(resp.Conflicts, conflict)
	}
}

func (c *conflictEngine) detectCustomers(ctx context.Context, userID int64, updated []model.LocalCustomer, resp *model.SyncResponse, now time.Time) {
	for i := range updated {
		local := &updated[i]
		server, err := c.customers.Get(ctx, userID, local.ServerID)
		if errors.Is(err, errs.ErrNotFound) {
			resp.Conflicts = append(resp.Conflicts, model.Conflict{
				EntityKind:         model.KindCustomer,
				ConflictType:       model.ConflictMissingOnServer,
				ServerID:           local.ServerID,
				LocalID:            local.LocalID,
				Message:            "customer was deleted on server but updated locally",
				ResolutionStrategy: model.ResolutionRecreateOnServer,
				LocalSnapshot:      local,
				Timestamp:          now,
			})
			continue
		}
		if err != nil {
			resp.AddError(fmt.Sprintf("customer conflict detection failed for id %d: %v", local.ServerID, err))
			continue
		}

		localAt := localUpdatedAt(local.UpdatedAt, now)
		if withinTolerance(server.UpdatedAt, localAt) {
			continue
		}
		divs := diffCustomer(server, local)
		if len(divs) == 0 {
			continue
		}

		// No customer field carries an auto rule; resolution is left to the client.
		resp.Conflicts = append(resp.Conflicts, model.Conflict{
			EntityKind:         model.KindCustomer,
			ConflictType:       model.ConflictDataMismatch,
			ServerID:           local.ServerID,
			LocalID:            local.LocalID,
			Message:            fmt.Sprintf("customer data diverged in %d field(s)", len(divs)),
			Divergences:        divs,
			ResolutionStrategy: model.ResolutionManual,
			ServerUpdatedAt:    &server.UpdatedAt,
			LocalUpdatedAt:     &localAt,
			ServerSnapshot:     server,
			LocalSnapshot:      local,
			Timestamp:          now,
		})
	}
}

func (c *conflictEngine) detectTransactions(ctx context.Context, userID int64, updated []model.LocalTransaction, resp *model.SyncResponse, now time.Time) {
	for i := range updated {
		local := &updated[i]
		server, err := c.transactions.Get(ctx, userID, local.ServerID)
		if errors.Is(err, errs.ErrNotFound) {
			resp.Conflicts = append(resp.Conflicts, model.Conflict{
				EntityKind:         model.KindTransaction,
				ConflictType:       model.ConflictMissingOnServer,
				ServerID:           local.ServerID,
				LocalID:            local.LocalID,
				Message:            "transaction was deleted on server but updated locally",
				ResolutionStrategy: model.ResolutionManualReview,
				LocalSnapshot:      local,
				Timestamp:          now,
			})
			continue
		}
		if err != nil {
			resp.AddError(fmt.Sprintf("transaction conflict detection failed for id %d: %v", local.ServerID, err))
			continue
		}

		localAt := localUpdatedAt(local.UpdatedAt, now)
		if withinTolerance(server.UpdatedAt, localAt) {
			continue
		}
		divs := diffTransaction(server, local)
		if len(divs) == 0 {
			continue
		}

		// Financial records always require human judgment, never auto-resolution.
		resp.Conflicts = append(resp.Conflicts, model.Conflict{
			EntityKind:         model.KindTransaction,
			ConflictType:       model.ConflictDataMismatch,
			ServerID:           local.ServerID,
			LocalID:            local.LocalID,
			Message:            fmt.Sprintf("transaction data diverged in %d field(s)", len(divs)),
			Divergences:        divs,
			ResolutionStrategy: model.ResolutionManualReview,
			ServerUpdatedAt:    &server.UpdatedAt,
			LocalUpdatedAt:     &localAt,
			ServerSnapshot:     server,
			LocalSnapshot:      local,
			Timestamp:          now,
		})
	}
}

// localUpdatedAt substitutes the captured sync time when the client omitted
// its updated_at. Rows the server also touched within the tolerance window
// then pass as no-conflict, while rows the server last touched before the
// window are still diffed: an undated client edit against a stale server
// row is treated as divergence, not silently skipped.
func localUpdatedAt(t *time.Time, now time.Time) time.Time {
	if t != nil {
		return *t
	}
	return now
}

func diffProduct(server *model.Product, local *model.LocalProduct) []model.FieldDivergence {
	var divs []model.FieldDivergence
	if server.NamaProduk != local.NamaProduk {
		divs = append(divs, model.FieldDivergence{
			Field: "nama_produk", ServerValue: server.NamaProduk, LocalValue: local.NamaProduk,
		})
	}
	if server.KodeProduk != local.KodeProduk {
		divs = append(divs, model.FieldDivergence{
			Field: "kode_produk", ServerValue: server.KodeProduk, LocalValue: local.KodeProduk,
		})
	}
	if server.JumlahProduk != local.JumlahProduk {
		divs = append(divs, model.FieldDivergence{
			Field: "jumlah_produk", ServerValue: server.JumlahProduk, LocalValue: local.JumlahProduk,
			AutoResolve: model.AutoRuleSum,
		})
	}
	if math.Abs(server.HargaJual-local.HargaJual) > moneyEpsilon {
		divs = append(divs, model.FieldDivergence{
			Field: "harga_jual", ServerValue: server.HargaJual, LocalValue: local.HargaJual,
			AutoResolve: model.AutoRuleLatest,
		})
	}
	if math.Abs(server.HargaModal-local.HargaModal) > moneyEpsilon {
		divs = append(divs, model.FieldDivergence{
			Field: "harga_modal", ServerValue: server.HargaModal, LocalValue: local.HargaModal,
			AutoResolve: model.AutoRuleLatest,
		})
	}
	return divs
}

// mergeProduct computes the auto-resolved snapshot: quantities are summed
// (two independent stock adjustments), prices follow the later update. The
// returned strategy is manual when no divergence carries an auto rule.
func mergeProduct(server *model.Product, local *model.LocalProduct, divs []model.FieldDivergence, localAt time.Time) (*model.Product, model.Resolution) {
	resolved := *server
	strategy := model.ResolutionManual

	for _, d := range divs {
		switch d.AutoResolve {
		case model.AutoRuleSum:
			resolved.JumlahProduk = server.JumlahProduk + local.JumlahProduk
			strategy = model.ResolutionAutoSumStock
		case model.AutoRuleLatest:
			if localAt.After(server.UpdatedAt) {
				switch d.Field {
				case "harga_jual":
					resolved.HargaJual = local.HargaJual
				case "harga_modal":
					resolved.HargaModal = local.HargaModal
				}
			}
			strategy = model.ResolutionAutoLatestWins
		}
	}
	return &resolved, strategy
}

func diffCustomer(server *model.Customer, local *model.LocalCustomer) []model.FieldDivergence {
	var divs []model.FieldDivergence
	if server.NamaPelanggan != local.NamaPelanggan {
		divs = append(divs, model.FieldDivergence{
			Field: "nama_pelanggan", ServerValue: server.NamaPelanggan, LocalValue: local.NamaPelanggan,
		})
	}
	if server.NomorTelepon != local.NomorTelepon {
		divs = append(divs, model.FieldDivergence{
			Field: "nomor_telepon", ServerValue: server.NomorTelepon, LocalValue: local.NomorTelepon,
		})
	}
	return divs
}

func diffTransaction(server *model.Transaction, local *model.LocalTransaction) []model.FieldDivergence {
	var divs []model.FieldDivergence
	if math.Abs(server.TotalBelanja-local.TotalBelanja) > moneyEpsilon {
		divs = append(divs, model.FieldDivergence{
			Field: "total_belanja", ServerValue: server.TotalBelanja, LocalValue: local.TotalBelanja,
		})
	}
	if server.StatusPembayaran != local.StatusPembayaran {
		divs = append(divs, model.FieldDivergence{
			Field: "status_pembayaran", ServerValue: server.StatusPembayaran, LocalValue: local.StatusPembayaran,
		})
	}
	return divs
}

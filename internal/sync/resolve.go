package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
	"github.com/kasirku/sync-server/internal/repository/postgres"
)

// ResolveConflicts applies client decisions for previously reported
// conflicts in one transaction. The operation is idempotent: re-applying
// the same snapshot writes the same values again.
func (e *Engine) ResolveConflicts(ctx context.Context, userID int64, resolutions []model.ConflictResolution) (*model.ResolveResult, error) {
	start := time.Now().UTC()
	result := &model.ResolveResult{Errors: []string{}}

	tx, err := e.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin resolve transaction: %w", err)
	}

	for i := range resolutions {
		item := &resolutions[i]
		if err := applyResolution(ctx, tx, userID, item, start); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to resolve %s conflict id %d: %v", item.EntityKind, item.ServerID, err))
			continue
		}
		result.Resolved++
	}

	status := model.StatusSuccess
	if result.Failed > 0 {
		status = model.StatusPartialSuccess
	}
	ended := time.Now().UTC()
	details, _ := json.Marshal(model.LogDetails{
		Action:   "manual conflict resolution",
		Resolved: result.Resolved,
		Failed:   result.Failed,
		Errors:   len(result.Errors),
	})
	entry := &model.SyncLog{
		UserID:    userID,
		StartedAt: start,
		EndedAt:   &ended,
		Direction: model.DirectionConflictResolution,
		Status:    status,
		Details:   details,
	}
	if err := postgres.NewSyncLogStore(tx).Record(ctx, entry); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("record resolution log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit resolve transaction: %w", err)
	}

	result.Success = true
	e.log.Info("conflicts resolved",
		zap.Int64("user_id", userID),
		zap.Int("resolved", result.Resolved),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// applyResolution writes the chosen snapshot to the server row. use_server
// keeps the server version and is a no-op; use_local and merge both write
// the snapshot the client supplied.
func applyResolution(ctx context.Context, q postgres.Querier, userID int64, item *model.ConflictResolution, now time.Time) error {
	switch item.Resolution {
	case model.ResolveUseServer:
		return nil
	case model.ResolveUseLocal, model.ResolveMerge:
	default:
		return fmt.Errorf("unknown resolution %q", item.Resolution)
	}

	switch item.EntityKind {
	case model.KindProduct:
		var snap model.Product
		if err := json.Unmarshal(item.ResolvedSnapshot, &snap); err != nil {
			return fmt.Errorf("decode product snapshot: %w", err)
		}
		return checkApplied(postgres.NewProductStore(q).ApplySnapshot(ctx, userID, item.ServerID, &snap, now))
	case model.KindCustomer:
		var snap model.Customer
		if err := json.Unmarshal(item.ResolvedSnapshot, &snap); err != nil {
			return fmt.Errorf("decode customer snapshot: %w", err)
		}
		return checkApplied(postgres.NewCustomerStore(q).ApplySnapshot(ctx, userID, item.ServerID, &snap, now))
	case model.KindTransaction:
		var snap model.Transaction
		if err := json.Unmarshal(item.ResolvedSnapshot, &snap); err != nil {
			return fmt.Errorf("decode transaction snapshot: %w", err)
		}
		return checkApplied(postgres.NewTransactionStore(q).ApplySnapshot(ctx, userID, item.ServerID, &snap, now))
	default:
		return fmt.Errorf("unknown entity kind %q", item.EntityKind)
	}
}

func checkApplied(found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		return errs.ErrNotFound
	}
	return nil
}

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

const (
	// conflictTolerance is the timestamp gap below which two independently
	// timed updates are treated as the same logical change (clock-skew
	// noise), not a conflict.
	conflictTolerance = 5 * time.Second

	// moneyEpsilon tolerates floating rounding when comparing monetary fields.
	moneyEpsilon = 0.01

	backupVersion       = "1.0"
	defaultMaxBatch     = 1000
	defaultMetricsDays  = 7
	recentLogLimit      = 10
	recentActivityLimit = 20
)

// epoch substitutes for a null watermark: download everything.
var epoch = time.Unix(0, 0).UTC()

// Engine sequences the sync phases over an injected store handle.
type Engine struct {
	db       *postgres.DB
	log      *zap.Logger
	maxBatch int
}

// NewEngine constructs the sync engine. maxBatch caps the number of items a
// single call may submit; values <= 0 select the default.
func NewEngine(db *postgres.DB, log *zap.Logger, maxBatch int) *Engine {
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	return &Engine{db: db, log: log, maxBatch: maxBatch}
}

var _ Service = (*Engine)(nil)

// Sync runs the full bidirectional flow.
func (e *Engine) Sync(ctx context.Context, userID int64, req *model.SyncRequest) (*model.SyncResponse, error) {
	return e.run(ctx, userID, req, model.DirectionBidirectional)
}

// UploadOnly applies client changes and advances the watermark without
// computing server changes.
func (e *Engine) UploadOnly(ctx context.Context, userID int64, req *model.SyncRequest) (*model.SyncResponse, error) {
	return e.run(ctx, userID, req, model.DirectionUploadOnly)
}

// DownloadOnly computes server changes without touching client uploads.
func (e *Engine) DownloadOnly(ctx context.Context, userID int64, req *model.SyncRequest) (*model.SyncResponse, error) {
	return e.run(ctx, userID, req, model.DirectionDownloadOnly)
}

// run is the shared transactional envelope for all sync directions: one
// in_progress log row, one transaction around the selected phases, one
// watermark advance, one terminal log update.
func (e *Engine) run(ctx context.Context, userID int64, req *model.SyncRequest, dir model.SyncDirection) (*model.SyncResponse, error) {
	if n := req.LocalChanges.Count(); n > e.maxBatch {
		return nil, fmt.Errorf("%w: %d items (limit %d)", errs.ErrBatchTooLarge, n, e.maxBatch)
	}

	start := time.Now()
	// The watermark is advanced to the time captured here, not "now" at call
	// end, so records mutated during this call's window are not skipped on
	// the next sync.
	serverSyncTime := start.UTC()
	resp := model.NewSyncResponse(serverSyncTime)

	// The log row lives outside the sync transaction so a crash or rollback
	// mid-sync remains observable.
	logs := postgres.NewSyncLogStore(e.db.Pool)
	logID, err := logs.Begin(ctx, userID, dir, req.ClientLastSyncTime, serverSyncTime)
	if err != nil {
		return nil, err
	}

	tx, err := e.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		e.finishFailed(ctx, logs, logID, err)
		return nil, fmt.Errorf("begin sync transaction: %w", err)
	}

	if err := e.runPhases(ctx, tx, userID, req, dir, resp, serverSyncTime); err != nil {
		_ = tx.Rollback(ctx)
		e.finishFailed(ctx, logs, logID, err)
		e.log.Error("sync failed",
			zap.Int64("user_id", userID),
			zap.String("direction", string(dir)),
			zap.Error(err),
		)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		e.finishFailed(ctx, logs, logID, err)
		return nil, fmt.Errorf("commit sync transaction: %w", err)
	}

	perf := &resp.PerformanceMetrics
	perf.TotalMs = time.Since(start).Milliseconds()
	perf.TotalItems = resp.ItemsUploaded + resp.ItemsDownloaded
	if secs := float64(perf.TotalMs) / 1000; secs > 0 {
		perf.ItemsPerSecond = float64(perf.TotalItems) / secs
	}

	status := model.StatusSuccess
	if len(resp.Errors) > 0 {
		status = model.StatusPartialSuccess
	}
	summary := resp.ServerChanges.Summarize()
	details, _ := json.Marshal(model.LogDetails{
		Conflicts:   len(resp.Conflicts),
		Errors:      len(resp.Errors),
		Performance: perf,
		Summary:     &summary,
	})
	if err := logs.Finish(ctx, logID, time.Now().UTC(), status, resp.ItemsUploaded, resp.ItemsDownloaded, serverSyncTime, details); err != nil {
		e.log.Error("finalize sync log", zap.Int64("log_id", logID), zap.Error(err))
	}

	resp.Success = true
	e.log.Info("sync completed",
		zap.Int64("user_id", userID),
		zap.String("direction", string(dir)),
		zap.String("status", string(status)),
		zap.Int("uploaded", resp.ItemsUploaded),
		zap.Int("downloaded", resp.ItemsDownloaded),
		zap.Int("conflicts", len(resp.Conflicts)),
		zap.Int("errors", len(resp.Errors)),
		zap.Duration("dur", time.Since(start)),
	)
	return resp, nil
}

// runPhases executes the phase subset for the direction, in fixed order:
// Upload, then Download, then Conflict detection, then watermark advance.
func (e *Engine) runPhases(ctx context.Context, tx pgx.Tx, userID int64, req *model.SyncRequest, dir model.SyncDirection, resp *model.SyncResponse, now time.Time) error {
	perf := &resp.PerformanceMetrics

	if dir != model.DirectionDownloadOnly {
		t0 := time.Now()
		newUploadProcessor(tx, e.log).run(ctx, userID, &req.LocalChanges, resp, now)
		perf.UploadMs = time.Since(t0).Milliseconds()
	}

	if dir != model.DirectionUploadOnly {
		t0 := time.Now()
		if err := newDownloadProcessor(tx).run(ctx, userID, req.ClientLastSyncTime, resp); err != nil {
			return err
		}
		perf.DownloadMs = time.Since(t0).Milliseconds()
	}

	if dir == model.DirectionBidirectional {
		t0 := time.Now()
		newConflictEngine(tx, e.log).run(ctx, userID, &req.LocalChanges, resp, now)
		perf.ConflictMs = time.Since(t0).Milliseconds()
	}

	if err := postgres.NewUserStore(tx).SetLastSyncTime(ctx, userID, now); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

func (e *Engine) finishFailed(ctx context.Context, logs *postgres.SyncLogStore, logID int64, cause error) {
	if err := logs.MarkFailed(ctx, logID, time.Now().UTC(), cause.Error()); err != nil {
		e.log.Error("mark sync log failed", zap.Int64("log_id", logID), zap.Error(err))
	}
}

// Status reports the watermark, pending change counts per entity kind and
// the most recent log entries.
func (e *Engine) Status(ctx context.Context, userID int64) (*model.SyncStatusInfo, error) {
	last, err := postgres.NewUserStore(e.db.Pool).LastSyncTime(ctx, userID)
	if err != nil {
		return nil, err
	}
	watermark := epoch
	if last != nil {
		watermark = *last
	}

	products, err := postgres.NewProductStore(e.db.Pool).CountPending(ctx, userID, watermark)
	if err != nil {
		return nil, err
	}
	customers, err := postgres.NewCustomerStore(e.db.Pool).CountPending(ctx, userID, watermark)
	if err != nil {
		return nil, err
	}
	transactions, err := postgres.NewTransactionStore(e.db.Pool).CountPending(ctx, userID, watermark)
	if err != nil {
		return nil, err
	}
	recent, err := postgres.NewSyncLogStore(e.db.Pool).Recent(ctx, userID, recentLogLimit)
	if err != nil {
		return nil, err
	}

	return &model.SyncStatusInfo{
		Success:      true,
		LastSyncTime: last,
		PendingChanges: model.PendingChanges{
			Products:     products,
			Customers:    customers,
			Transactions: transactions,
		},
		RecentSyncLogs: recent,
	}, nil
}

// Reset clears the watermark so the next sync downloads everything, and
// records the action in the sync log.
func (e *Engine) Reset(ctx context.Context, userID int64) error {
	if err := postgres.NewUserStore(e.db.Pool).ClearLastSyncTime(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	details, _ := json.Marshal(model.LogDetails{Action: "force full sync requested"})
	entry := &model.SyncLog{
		UserID:    userID,
		StartedAt: now,
		EndedAt:   &now,
		Direction: model.DirectionReset,
		Status:    model.StatusSuccess,
		Details:   details,
	}
	if err := postgres.NewSyncLogStore(e.db.Pool).Record(ctx, entry); err != nil {
		e.log.Error("record reset log", zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}

// Summary returns total/active record counts per entity kind plus the most
// recently touched records.
func (e *Engine) Summary(ctx context.Context, userID int64) (*model.DataSummary, error) {
	out := &model.DataSummary{Success: true, RecentActivity: []model.ActivityItem{}}

	var err error
	if out.Products.Total, out.Products.Active, err = postgres.NewProductStore(e.db.Pool).Counts(ctx, userID); err != nil {
		return nil, err
	}
	if out.Customers.Total, out.Customers.Active, err = postgres.NewCustomerStore(e.db.Pool).Counts(ctx, userID); err != nil {
		return nil, err
	}
	if out.Transactions.Total, out.Transactions.Active, err = postgres.NewTransactionStore(e.db.Pool).Counts(ctx, userID); err != nil {
		return nil, err
	}

	activity, err := postgres.RecentActivity(ctx, e.db.Pool, userID, recentActivityLimit)
	if err != nil {
		return nil, err
	}
	if activity != nil {
		out.RecentActivity = activity
	}
	return out, nil
}

// Backup exports the user's active data set with a version tag.
func (e *Engine) Backup(ctx context.Context, userID int64) (*model.Backup, error) {
	user, err := postgres.NewUserStore(e.db.Pool).Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	products, err := postgres.NewProductStore(e.db.Pool).ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	customers, err := postgres.NewCustomerStore(e.db.Pool).ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	transactions, err := postgres.NewTransactionStore(e.db.Pool).ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.Backup{
		User:         user,
		Products:     products,
		Customers:    customers,
		Transactions: transactions,
		BackupTime:   time.Now().UTC(),
		Version:      backupVersion,
	}, nil
}

// Metrics aggregates daily sync statistics and recurring failure signatures
// over the given day window.
func (e *Engine) Metrics(ctx context.Context, userID int64, days int) (*model.SyncMetrics, error) {
	if days <= 0 {
		days = defaultMetricsDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	logs := postgres.NewSyncLogStore(e.db.Pool)
	daily, err := logs.DailyStats(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	failures, err := logs.FailureSignatures(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	out := &model.SyncMetrics{
		Success:       true,
		DailyMetrics:  daily,
		ErrorPatterns: failures,
		PeriodDays:    days,
	}
	if out.DailyMetrics == nil {
		out.DailyMetrics = []model.DailySyncStat{}
	}
	if out.ErrorPatterns == nil {
		out.ErrorPatterns = []model.FailureSignature{}
	}
	return out, nil
}

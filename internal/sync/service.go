// Package sync implements the bidirectional synchronization engine: upload,
// download and conflict phases sequenced inside one store transaction.
package sync

import (
	"context"

	"github.com/kasirku/sync-server/internal/model"
)

// Service defines the sync operations exposed to the transport layer.
type Service interface {
	// Sync runs Upload, Download and Conflict detection in one transaction.
	Sync(ctx context.Context, userID int64, req *model.SyncRequest) (*model.SyncResponse, error)
	// UploadOnly applies client changes without computing server changes.
	UploadOnly(ctx context.Context, userID int64, req *model.SyncRequest) (*model.SyncResponse, error)
	// DownloadOnly computes server changes without applying client changes.
	DownloadOnly(ctx context.Context, userID int64, req *model.SyncRequest) (*model.SyncResponse, error)
	// ResolveConflicts applies client decisions for previously reported conflicts.
	ResolveConflicts(ctx context.Context, userID int64, resolutions []model.ConflictResolution) (*model.ResolveResult, error)
	// Status reports the watermark, pending change counts and recent log entries.
	Status(ctx context.Context, userID int64) (*model.SyncStatusInfo, error)
	// Reset clears the watermark, forcing a full download on the next sync.
	Reset(ctx context.Context, userID int64) error
	// Summary returns per-entity record counts and recent activity.
	Summary(ctx context.Context, userID int64) (*model.DataSummary, error)
	// Backup exports the user's active data set.
	Backup(ctx context.Context, userID int64) (*model.Backup, error)
	// Metrics aggregates sync log statistics over a day window.
	Metrics(ctx context.Context, userID int64, days int) (*model.SyncMetrics, error)
}

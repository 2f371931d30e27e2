package model

import (
	"encoding/json"
	"time"
)

// SyncDirection says which phases a sync attempt ran.
type SyncDirection string

const (
	DirectionBidirectional      SyncDirection = "bidirectional"
	DirectionUploadOnly         SyncDirection = "upload_only"
	DirectionDownloadOnly       SyncDirection = "download_only"
	DirectionReset              SyncDirection = "reset"
	DirectionConflictResolution SyncDirection = "conflict_resolution"
)

// SyncLogStatus is the lifecycle state of one sync attempt.
type SyncLogStatus string

const (
	StatusInProgress     SyncLogStatus = "in_progress"
	StatusSuccess        SyncLogStatus = "success"
	StatusPartialSuccess SyncLogStatus = "partial_success"
	StatusFailed         SyncLogStatus = "failed"
)

// SyncLog is one row of the append-only sync audit trail. A row is created
// in_progress before any phase runs and finalized exactly once.
type SyncLog struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"-"`
	StartedAt       time.Time       `json:"startedAt"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
	Direction       SyncDirection   `json:"direction"`
	Status          SyncLogStatus   `json:"status"`
	ItemsUploaded   int             `json:"itemsUploaded"`
	ItemsDownloaded int             `json:"itemsDownloaded"`
	ClientSyncTime  *time.Time      `json:"clientSyncTime,omitempty"`
	ServerSyncTime  *time.Time      `json:"serverSyncTime,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	Details         json.RawMessage `json:"details,omitempty"`
}

// LogDetails is the structured payload stored in sync_logs.details,
// sufficient for downstream metrics without re-deriving from row data.
type LogDetails struct {
	Action      string              `json:"action,omitempty"`
	Conflicts   int                 `json:"conflicts"`
	Errors      int                 `json:"errors"`
	Resolved    int                 `json:"resolved,omitempty"`
	Failed      int                 `json:"failed,omitempty"`
	Performance *PerformanceMetrics `json:"performance,omitempty"`
	Summary     *ChangeSummary      `json:"summary,omitempty"`
}

// PerformanceMetrics carries per-phase timings and throughput for one call.
type PerformanceMetrics struct {
	UploadMs       int64   `json:"uploadMs"`
	DownloadMs     int64   `json:"downloadMs"`
	ConflictMs     int64   `json:"conflictMs"`
	TotalMs        int64   `json:"totalMs"`
	TotalItems     int     `json:"totalItems"`
	ItemsPerSecond float64 `json:"itemsPerSecond"`
}

// DailySyncStat is one day's aggregated sync activity.
type DailySyncStat struct {
	Date            string  `json:"date"`
	SyncCount       int64   `json:"syncCount"`
	AvgItemsSynced  float64 `json:"avgItemsSynced"`
	SuccessfulSyncs int64   `json:"successfulSyncs"`
}

// FailureSignature is a recurring error message prefix among failed syncs.
type FailureSignature struct {
	Pattern     string    `json:"pattern"`
	Occurrences int64     `json:"occurrences"`
	LastSeen    time.Time `json:"lastSeen"`
}

package model

import "time"

// SyncRequest is the body of a sync call. A nil ClientLastSyncTime means the
// client has never synced and wants a full download.
type SyncRequest struct {
	ClientLastSyncTime *time.Time   `json:"clientLastSyncTime"`
	LocalChanges       LocalChanges `json:"localChanges"`
}

// SyncResponse is the aggregate result of one sync call.
type SyncResponse struct {
	Success            bool               `json:"success"`
	ServerSyncTime     time.Time          `json:"serverSyncTime"`
	ItemsUploaded      int                `json:"itemsUploaded"`
	ItemsDownloaded    int                `json:"itemsDownloaded"`
	ServerChanges      ServerChanges      `json:"serverChanges"`
	Conflicts          []Conflict         `json:"conflicts"`
	Errors             []string           `json:"errors"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
}

// NewSyncResponse returns a response pre-populated with empty collections
// and the captured server time.
func NewSyncResponse(serverSyncTime time.Time) *SyncResponse {
	return &SyncResponse{
		ServerSyncTime: serverSyncTime,
		ServerChanges:  EmptyServerChanges(),
		Conflicts:      []Conflict{},
		Errors:         []string{},
	}
}

// AddError records a non-fatal per-item failure.
func (r *SyncResponse) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// PendingChanges counts records modified after the user's watermark, per entity kind.
type PendingChanges struct {
	Products     int64 `json:"products"`
	Customers    int64 `json:"customers"`
	Transactions int64 `json:"transactions"`
}

// SyncStatusInfo is the response of the sync status endpoint.
type SyncStatusInfo struct {
	Success        bool           `json:"success"`
	LastSyncTime   *time.Time     `json:"lastSyncTime"`
	PendingChanges PendingChanges `json:"pendingChanges"`
	RecentSyncLogs []SyncLog      `json:"recentSyncLogs"`
}

// EntityCount reports total and non-deleted record counts for one entity kind.
type EntityCount struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

// ActivityItem is one recently-touched record in the data summary.
type ActivityItem struct {
	Kind      EntityKind `json:"type"`
	Name      string     `json:"name"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DataSummary is the response of the summary endpoint.
type DataSummary struct {
	Success        bool           `json:"success"`
	Products       EntityCount    `json:"products"`
	Customers      EntityCount    `json:"customers"`
	Transactions   EntityCount    `json:"transactions"`
	RecentActivity []ActivityItem `json:"recentActivity"`
}

// Backup is a full export of a user's active data.
type Backup struct {
	User         *User         `json:"user"`
	Products     []Product     `json:"products"`
	Customers    []Customer    `json:"customers"`
	Transactions []Transaction `json:"transactions"`
	BackupTime   time.Time     `json:"backupTime"`
	Version      string        `json:"version"`
}

// SyncMetrics aggregates sync log statistics over a day window.
type SyncMetrics struct {
	Success       bool               `json:"success"`
	DailyMetrics  []DailySyncStat    `json:"dailyMetrics"`
	ErrorPatterns []FailureSignature `json:"errorPatterns"`
	PeriodDays    int                `json:"periodDays"`
}

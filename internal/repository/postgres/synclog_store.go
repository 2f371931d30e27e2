package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kasirku/sync-server/internal/model"
)

// SyncLogStore appends to and reads the sync audit trail.
type SyncLogStore struct{ q Querier }

// NewSyncLogStore constructs a sync log store over a pool or transaction.
func NewSyncLogStore(q Querier) *SyncLogStore { return &SyncLogStore{q: q} }

// Begin inserts an in_progress row before any sync phase runs, so a crash
// mid-sync is still observable in the log. Returns the row id for finalization.
func (s *SyncLogStore) Begin(ctx context.Context, userID int64, dir model.SyncDirection, clientTime *time.Time, startedAt time.Time) (int64, error) {
	const q = `INSERT INTO sync_logs (user_id, started_at, direction, status, client_sync_time)
VALUES ($1,$2,$3,$4,$5) RETURNING id`

	var id int64
	err := s.q.QueryRow(ctx, q, userID, startedAt, dir, model.StatusInProgress, clientTime).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create sync log: %w", err)
	}
	return id, nil
}

// Finish finalizes a row created by Begin with the terminal outcome.
func (s *SyncLogStore) Finish(ctx context.Context, logID int64, endedAt time.Time, status model.SyncLogStatus, uploaded, downloaded int, serverTime time.Time, details []byte) error {
	const q = `UPDATE sync_logs SET ended_at=$1, status=$2, items_uploaded=$3, items_downloaded=$4, server_sync_time=$5, details=$6 WHERE id=$7`

	_, err := s.q.Exec(ctx, q, endedAt, status, uploaded, downloaded, serverTime, details, logID)
	return err
}

// MarkFailed finalizes a row after a fatal, transaction-aborting error.
func (s *SyncLogStore) MarkFailed(ctx context.Context, logID int64, endedAt time.Time, message string) error {
	const q = `UPDATE sync_logs SET ended_at=$1, status=$2, error_message=$3 WHERE id=$4`

	_, err := s.q.Exec(ctx, q, endedAt, model.StatusFailed, message, logID)
	return err
}

// Record inserts an already-terminal row, used by reset and manual conflict
// resolution which have no in-progress window worth tracking.
func (s *SyncLogStore) Record(ctx context.Context, l *model.SyncLog) error {
	const q = `INSERT INTO sync_logs (user_id, started_at, ended_at, direction, status, items_uploaded, items_downloaded, details)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := s.q.Exec(ctx, q, l.UserID, l.StartedAt, l.EndedAt, l.Direction, l.Status,
		l.ItemsUploaded, l.ItemsDownloaded, []byte(l.Details))
	return err
}

// Recent returns the latest log entries for a user, newest first.
func (s *SyncLogStore) Recent(ctx context.Context, userID int64, limit int) ([]model.SyncLog, error) {
	const q = `SELECT id, started_at, ended_at, direction, status, items_uploaded, items_downloaded, error_message
FROM sync_logs WHERE user_id=$1 ORDER BY started_at DESC LIMIT $2`

	rows, err := s.q.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncLog
	for rows.Next() {
		l := model.SyncLog{UserID: userID}
		var errMsg *string
		if err := rows.Scan(&l.ID, &l.StartedAt, &l.EndedAt, &l.Direction, &l.Status,
			&l.ItemsUploaded, &l.ItemsDownloaded, &errMsg); err != nil {
			return nil, err
		}
		if errMsg != nil {
			l.ErrorMessage = *errMsg
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DailyStats aggregates bidirectional sync activity per day over the window.
func (s *SyncLogStore) DailyStats(ctx context.Context, userID int64, since time.Time) ([]model.DailySyncStat, error) {
	const q = `SELECT date_trunc('day', started_at)::date AS day, COUNT(*),
COALESCE(AVG(items_uploaded + items_downloaded), 0),
COUNT(*) FILTER (WHERE status = 'success')
FROM sync_logs
WHERE user_id=$1 AND started_at >= $2 AND direction = 'bidirectional'
GROUP BY day ORDER BY day DESC`

	rows, err := s.q.Query(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DailySyncStat
	for rows.Next() {
		var day time.Time
		var st model.DailySyncStat
		if err := rows.Scan(&day, &st.SyncCount, &st.AvgItemsSynced, &st.SuccessfulSyncs); err != nil {
			return nil, err
		}
		st.Date = day.Format("2006-01-02")
		out = append(out, st)
	}
	return out, rows.Err()
}

// FailureSignatures groups failed syncs by error message prefix to surface
// recurring problems.
func (s *SyncLogStore) FailureSignatures(ctx context.Context, userID int64, since time.Time) ([]model.FailureSignature, error) {
	const q = `SELECT LEFT(error_message, 100) AS pattern, COUNT(*), MAX(started_at)
FROM sync_logs
WHERE user_id=$1 AND status = 'failed' AND started_at >= $2 AND error_message IS NOT NULL
GROUP BY pattern ORDER BY COUNT(*) DESC LIMIT 10`

	rows, err := s.q.Query(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FailureSignature
	for rows.Next() {
		var f model.FailureSignature
		if err := rows.Scan(&f.Pattern, &f.Occurrences, &f.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

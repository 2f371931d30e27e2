package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/sync-server/internal/model"
)

func TestSyncLogStore_Begin(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewSyncLogStore(mock)

	started := time.Now().UTC()
	client := started.Add(-time.Hour)

	mock.ExpectQuery(`INSERT INTO sync_logs \(user_id, started_at, direction, status, client_sync_time\)`).
		WithArgs(int64(1), started, model.DirectionBidirectional, model.StatusInProgress, &client).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(77)))

	id, err := s.Begin(context.Background(), 1, model.DirectionBidirectional, &client, started)
	require.NoError(t, err)
	require.Equal(t, int64(77), id)
}

func TestSyncLogStore_Finish(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewSyncLogStore(mock)

	ended := time.Now().UTC()
	server := ended.Add(-time.Second)

	mock.ExpectExec(`UPDATE sync_logs SET ended_at=\$1, status=\$2, items_uploaded=\$3, items_downloaded=\$4, server_sync_time=\$5, details=\$6 WHERE id=\$7`).
		WithArgs(ended, model.StatusSuccess, 3, 5, server, []byte(`{}`), int64(77)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.Finish(context.Background(), 77, ended, model.StatusSuccess, 3, 5, server, []byte(`{}`))
	require.NoError(t, err)
}

func TestSyncLogStore_MarkFailed(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewSyncLogStore(mock)

	ended := time.Now().UTC()
	mock.ExpectExec(`UPDATE sync_logs SET ended_at=\$1, status=\$2, error_message=\$3 WHERE id=\$4`).
		WithArgs(ended, model.StatusFailed, "download products: boom", int64(77)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkFailed(context.Background(), 77, ended, "download products: boom")
	require.NoError(t, err)
}

func TestSyncLogStore_Recent(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewSyncLogStore(mock)

	started := time.Now().UTC()
	msg := "watermark missing"
	rows := pgxmock.NewRows([]string{"id", "started_at", "ended_at", "direction", "status", "items_uploaded", "items_downloaded", "error_message"}).
		AddRow(int64(2), started, &started, model.DirectionBidirectional, model.StatusSuccess, 3, 1, (*string)(nil)).
		AddRow(int64(1), started.Add(-time.Hour), (*time.Time)(nil), model.DirectionBidirectional, model.StatusFailed, 0, 0, &msg)

	mock.ExpectQuery(`SELECT id, started_at, ended_at, direction, status, items_uploaded, items_downloaded, error_message`).
		WithArgs(int64(1), 10).
		WillReturnRows(rows)

	out, err := s.Recent(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, model.StatusSuccess, out[0].Status)
	require.Empty(t, out[0].ErrorMessage)
	require.Equal(t, "watermark missing", out[1].ErrorMessage)
}

func TestSyncLogStore_DailyStats(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewSyncLogStore(mock)

	since := time.Now().UTC().AddDate(0, 0, -7)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"day", "count", "avg", "successful"}).
		AddRow(day, int64(4), 12.5, int64(3))

	mock.ExpectQuery(`SELECT date_trunc\('day', started_at\)::date AS day`).
		WithArgs(int64(1), since).
		WillReturnRows(rows)

	out, err := s.DailyStats(context.Background(), 1, since)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "2024-03-01", out[0].Date)
	require.Equal(t, int64(4), out[0].SyncCount)
	require.Equal(t, 12.5, out[0].AvgItemsSynced)
	require.Equal(t, int64(3), out[0].SuccessfulSyncs)
}

func TestSyncLogStore_FailureSignatures(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	s := NewSyncLogStore(mock)

	since := time.Now().UTC().AddDate(0, 0, -7)
	last := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"pattern", "count", "last"}).
		AddRow("advance watermark: user not found", int64(3), last)

	mock.ExpectQuery(`SELECT LEFT\(error_message, 100\) AS pattern`).
		WithArgs(int64(1), since).
		WillReturnRows(rows)

	out, err := s.FailureSignatures(context.Background(), 1, since)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(3), out[0].Occurrences)
}

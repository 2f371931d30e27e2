package sync

import (
	"context"
	"encoding/json"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/kasirku/sync-server/internal/model"
)

func TestResolveConflicts_UseLocal_WritesSnapshot(t *testing.T) {
	e, mock := newEngine(t)

	snap, _ := json.Marshal(model.Product{
		ID: 9, NamaProduk: "Kopi", KodeProduk: "K-1", JumlahProduk: 8, HargaModal: 8000, HargaJual: 12000,
	})

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products SET nama_produk=\$1, kode_produk=\$2, jumlah_produk=\$3`).
		WithArgs("Kopi", "K-1", int64(8), 8000.0, 12000.0, pgxmock.AnyArg(), int64(9), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO sync_logs`).
		WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), model.DirectionConflictResolution, model.StatusSuccess, 0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := e.ResolveConflicts(context.Background(), 1, []model.ConflictResolution{{
		EntityKind: model.KindProduct, ServerID: 9,
		Resolution: model.ResolveUseLocal, ResolvedSnapshot: snap,
	}})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Resolved)
	require.Zero(t, result.Failed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveConflicts_UseServer_NoWrite(t *testing.T) {
	e, mock := newEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sync_logs`).
		WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), model.DirectionConflictResolution, model.StatusSuccess, 0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := e.ResolveConflicts(context.Background(), 1, []model.ConflictResolution{{
		EntityKind: model.KindProduct, ServerID: 9, Resolution: model.ResolveUseServer,
	}})
	require.NoError(t, err)
	require.Equal(t, 1, result.Resolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveConflicts_PartialFailure(t *testing.T) {
	e, mock := newEngine(t)

	custSnap, _ := json.Marshal(model.Customer{ID: 4, NamaPelanggan: "Siti", NomorTelepon: "0812"})

	mock.ExpectBegin()
	// First item targets a row that no longer exists.
	mock.ExpectExec(`UPDATE customers SET nama_pelanggan=\$1, nomor_telepon=\$2`).
		WithArgs("Siti", "0812", pgxmock.AnyArg(), int64(4), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO sync_logs`).
		WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), model.DirectionConflictResolution, model.StatusPartialSuccess, 0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := e.ResolveConflicts(context.Background(), 1, []model.ConflictResolution{
		{EntityKind: model.KindCustomer, ServerID: 4, Resolution: model.ResolveMerge, ResolvedSnapshot: custSnap},
		{EntityKind: model.KindProduct, ServerID: 9, Resolution: "overwrite_everything"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Zero(t, result.Resolved)
	require.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[1], `unknown resolution "overwrite_everything"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveConflicts_BadSnapshotJSON(t *testing.T) {
	e, mock := newEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sync_logs`).
		WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), model.DirectionConflictResolution, model.StatusPartialSuccess, 0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := e.ResolveConflicts(context.Background(), 1, []model.ConflictResolution{{
		EntityKind: model.KindTransaction, ServerID: 6,
		Resolution: model.ResolveUseLocal, ResolvedSnapshot: json.RawMessage(`{broken`),
	}})
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	require.Contains(t, result.Errors[0], "decode transaction snapshot")
}

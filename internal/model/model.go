// Package model defines domain entities shared by the sync engine, stores and HTTP layer.
package model

import (
	"encoding/json"
	"time"
)

// EntityKind identifies which of the three synchronized record types a value belongs to.
type EntityKind string

const (
	KindProduct     EntityKind = "product"
	KindCustomer    EntityKind = "customer"
	KindTransaction EntityKind = "transaction"
)

// Snapshot is the sum of record shapes a conflict can carry: the three
// server-side rows plus their client-side counterparts. Consumers dispatch
// on Kind with an exhaustive type switch instead of string tags.
type Snapshot interface {
	Kind() EntityKind
}

// Product is a server-side product row. Field names follow the POS client's
// wire contract and the database columns.
type Product struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"-"`
	NamaProduk   string     `json:"nama_produk"`
	KodeProduk   string     `json:"kode_produk"`
	JumlahProduk int64      `json:"jumlah_produk"`
	HargaModal   float64    `json:"harga_modal"`
	HargaJual    float64    `json:"harga_jual"`
	GambarProduk *string    `json:"gambar_produk,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (Product) Kind() EntityKind { return KindProduct }

// Customer is a server-side customer row.
type Customer struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"-"`
	NamaPelanggan string     `json:"nama_pelanggan"`
	NomorTelepon  string     `json:"nomor_telepon"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

func (Customer) Kind() EntityKind { return KindCustomer }

// Transaction is a server-side sales transaction row. DetailItems keeps the
// serialized line items exactly as the client produced them.
type Transaction struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"-"`
	TanggalTransaksi  time.Time       `json:"tanggal_transaksi"`
	TotalBelanja      float64         `json:"total_belanja"`
	TotalModal        float64         `json:"total_modal"`
	MetodePembayaran  string          `json:"metode_pembayaran"`
	StatusPembayaran  string          `json:"status_pembayaran"`
	IDPelanggan       *int64          `json:"id_pelanggan,omitempty"`
	DetailItems       json.RawMessage `json:"detail_items,omitempty"`
	JumlahBayar       float64         `json:"jumlah_bayar"`
	JumlahKembali     float64         `json:"jumlah_kembali"`
	IDTransaksiHutang *int64          `json:"id_transaksi_hutang,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`
}

func (Transaction) Kind() EntityKind { return KindTransaction }

// LocalProduct is a product as the client holds it: a client-local id plus,
// once synced, the server identity. Timestamps are optional; the server
// substitutes the captured sync time when they are absent.
type LocalProduct struct {
	LocalID      int64      `json:"id"`
	ServerID     int64      `json:"server_id,omitempty"`
	NamaProduk   string     `json:"nama_produk"`
	KodeProduk   string     `json:"kode_produk"`
	JumlahProduk int64      `json:"jumlah_produk"`
	HargaModal   float64    `json:"harga_modal"`
	HargaJual    float64    `json:"harga_jual"`
	GambarProduk *string    `json:"gambar_produk,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func (LocalProduct) Kind() EntityKind { return KindProduct }

// LocalCustomer is a customer as the client holds it.
type LocalCustomer struct {
	LocalID       int64      `json:"id"`
	ServerID      int64      `json:"server_id,omitempty"`
	NamaPelanggan string     `json:"nama_pelanggan"`
	NomorTelepon  string     `json:"nomor_telepon"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func (LocalCustomer) Kind() EntityKind { return KindCustomer }

// LocalTransaction is a transaction as the client holds it. IDPelanggan may
// reference a customer uploaded in the same batch by its client-local id.
type LocalTransaction struct {
	LocalID           int64           `json:"id"`
	ServerID          int64           `json:"server_id,omitempty"`
	TanggalTransaksi  time.Time       `json:"tanggal_transaksi"`
	TotalBelanja      float64         `json:"total_belanja"`
	TotalModal        float64         `json:"total_modal"`
	MetodePembayaran  string          `json:"metode_pembayaran"`
	StatusPembayaran  string          `json:"status_pembayaran"`
	IDPelanggan       *int64          `json:"id_pelanggan,omitempty"`
	DetailItems       json.RawMessage `json:"detail_items,omitempty"`
	JumlahBayar       float64         `json:"jumlah_bayar"`
	JumlahKembali     float64         `json:"jumlah_kembali"`
	IDTransaksiHutang *int64          `json:"id_transaksi_hutang,omitempty"`
	CreatedAt         *time.Time      `json:"created_at,omitempty"`
	UpdatedAt         *time.Time      `json:"updated_at,omitempty"`
}

func (LocalTransaction) Kind() EntityKind { return KindTransaction }

// User is the account owning the synchronized data. Credentials are managed
// elsewhere; the sync service only reads profile data and maintains the
// last-sync watermark.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PhoneNumber  string     `json:"phoneNumber"`
	StoreName    string     `json:"storeName"`
	StoreAddress string     `json:"storeAddress"`
	LastSyncTime *time.Time `json:"lastSyncTime"`
}

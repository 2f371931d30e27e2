package model

import (
	"bytes"
	"encoding/json"
)

// DeleteRef identifies a record the client wants soft-deleted. The canonical
// wire shape is an object carrying server_id; older clients send a bare
// integer id, which is accepted on decode.
type DeleteRef struct {
	ServerID int64 `json:"server_id"`
}

func (d *DeleteRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		return json.Unmarshal(b, &d.ServerID)
	}
	type plain DeleteRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = DeleteRef(p)
	return nil
}

// LocalBucket groups one entity kind's pending client mutations.
type LocalBucket[T any] struct {
	New     []T         `json:"new"`
	Updated []T         `json:"updated"`
	Deleted []DeleteRef `json:"deleted"`
}

func (b *LocalBucket[T]) count() int {
	return len(b.New) + len(b.Updated) + len(b.Deleted)
}

// LocalChanges is the full change set a client submits in one sync call.
type LocalChanges struct {
	Products     LocalBucket[LocalProduct]     `json:"products"`
	Customers    LocalBucket[LocalCustomer]    `json:"customers"`
	Transactions LocalBucket[LocalTransaction] `json:"transactions"`
}

// Count returns the total number of submitted items across all buckets.
func (c *LocalChanges) Count() int {
	return c.Products.count() + c.Customers.count() + c.Transactions.count()
}

// IDMapping tells the client which server identity was assigned to a record
// it uploaded, keyed by the client-local id it submitted.
type IDMapping struct {
	LocalID  int64  `json:"localId"`
	ServerID int64  `json:"serverId"`
	Label    string `json:"label,omitempty"`
}

// NewEntry is one element of a server bucket's new sequence: either an id
// mapping for a record the client just uploaded, or a full server record
// the client has not seen yet. Exactly one side is set.
type NewEntry[T Snapshot] struct {
	Mapping *IDMapping
	Record  *T
}

func (e NewEntry[T]) MarshalJSON() ([]byte, error) {
	if e.Mapping != nil {
		return json.Marshal(e.Mapping)
	}
	return json.Marshal(e.Record)
}

func (e *NewEntry[T]) UnmarshalJSON(b []byte) error {
	// Only mappings carry a serverId key; full records use id.
	var probe struct {
		ServerID *int64 `json:"serverId"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.ServerID != nil {
		e.Mapping = &IDMapping{}
		return json.Unmarshal(b, e.Mapping)
	}
	e.Record = new(T)
	return json.Unmarshal(b, e.Record)
}

// ServerBucket groups one entity kind's server-side mutations relative to
// the client's watermark.
type ServerBucket[T Snapshot] struct {
	New     []NewEntry[T] `json:"new"`
	Updated []T           `json:"updated"`
	Deleted []int64       `json:"deleted"`
}

// ServerChanges is the reciprocal change set returned to the client.
type ServerChanges struct {
	Products     ServerBucket[Product]     `json:"products"`
	Customers    ServerBucket[Customer]    `json:"customers"`
	Transactions ServerBucket[Transaction] `json:"transactions"`
}

// EmptyServerChanges returns a change set with empty (non-null) buckets so
// the JSON response always carries the full shape.
func EmptyServerChanges() ServerChanges {
	return ServerChanges{
		Products: ServerBucket[Product]{
			New: []NewEntry[Product]{}, Updated: []Product{}, Deleted: []int64{},
		},
		Customers: ServerBucket[Customer]{
			New: []NewEntry[Customer]{}, Updated: []Customer{}, Deleted: []int64{},
		},
		Transactions: ServerBucket[Transaction]{
			New: []NewEntry[Transaction]{}, Updated: []Transaction{}, Deleted: []int64{},
		},
	}
}

// BucketCounts summarizes a server bucket for sync log details.
type BucketCounts struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// ChangeSummary summarizes the server changes per entity kind.
type ChangeSummary struct {
	Products     BucketCounts `json:"products"`
	Customers    BucketCounts `json:"customers"`
	Transactions BucketCounts `json:"transactions"`
}

// Summarize counts the entries in each bucket.
func (c *ServerChanges) Summarize() ChangeSummary {
	return ChangeSummary{
		Products: BucketCounts{
			New: len(c.Products.New), Updated: len(c.Products.Updated), Deleted: len(c.Products.Deleted),
		},
		Customers: BucketCounts{
			New: len(c.Customers.New), Updated: len(c.Customers.Updated), Deleted: len(c.Customers.Deleted),
		},
		Transactions: BucketCounts{
			New: len(c.Transactions.New), Updated: len(c.Transactions.Updated), Deleted: len(c.Transactions.Deleted),
		},
	}
}

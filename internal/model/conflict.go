package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ConflictType classifies how local and server state diverged.
type ConflictType string

const (
	// ConflictMissingOnServer: the client updated a record that no longer exists server-side.
	ConflictMissingOnServer ConflictType = "missing_on_server"
	// ConflictDataMismatch: both sides hold the record with differing field values.
	ConflictDataMismatch ConflictType = "data_mismatch"
)

// Resolution names the strategy suggested or applied for a conflict.
type Resolution string

const (
	ResolutionManual           Resolution = "manual"
	ResolutionManualReview     Resolution = "manual_review"
	ResolutionRecreateOnServer Resolution = "recreate_on_server"
	ResolutionAutoSumStock     Resolution = "auto_sum_stock"
	ResolutionAutoLatestWins   Resolution = "auto_latest_wins"
)

// Auto reports whether the strategy was applied server-side without human input.
func (r Resolution) Auto() bool { return strings.HasPrefix(string(r), "auto_") }

// AutoRule tags a field divergence with the merge rule that can resolve it.
type AutoRule string

const (
	// AutoRuleSum adds both quantities, modeling two independent stock adjustments.
	AutoRuleSum AutoRule = "sum"
	// AutoRuleLatest keeps the value from whichever side updated last.
	AutoRuleLatest AutoRule = "latest"
)

// FieldDivergence is one differing field between the server and local copies.
type FieldDivergence struct {
	Field       string   `json:"field"`
	ServerValue any      `json:"serverValue"`
	LocalValue  any      `json:"localValue"`
	AutoResolve AutoRule `json:"autoResolve,omitempty"`
}

// Conflict is a detected divergence between a locally-updated record and
// current server state, together with the applied or suggested resolution.
type Conflict struct {
	EntityKind         EntityKind        `json:"entityKind"`
	ConflictType       ConflictType      `json:"conflictType"`
	ServerID           int64             `json:"serverId"`
	LocalID            int64             `json:"localId,omitempty"`
	Message            string            `json:"message"`
	Divergences        []FieldDivergence `json:"divergences,omitempty"`
	ResolutionStrategy Resolution        `json:"resolutionStrategy"`
	ServerUpdatedAt    *time.Time        `json:"serverUpdatedAt,omitempty"`
	LocalUpdatedAt     *time.Time        `json:"localUpdatedAt,omitempty"`
	ServerSnapshot     Snapshot          `json:"serverSnapshot,omitempty"`
	LocalSnapshot      Snapshot          `json:"localSnapshot,omitempty"`
	ResolvedSnapshot   Snapshot          `json:"resolvedSnapshot,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
}

// ConflictResolution is a client decision for one previously reported
// conflict. ResolvedSnapshot is decoded per EntityKind when applied.
type ConflictResolution struct {
	EntityKind       EntityKind      `json:"entityKind"`
	ServerID         int64           `json:"serverId"`
	Resolution       string          `json:"resolution"`
	ResolvedSnapshot json.RawMessage `json:"resolvedSnapshot,omitempty"`
}

// Client-chosen resolution values for ConflictResolution.Resolution.
const (
	ResolveUseServer = "use_server"
	ResolveUseLocal  = "use_local"
	ResolveMerge     = "merge"
)

// ResolveResult reports the outcome of a manual conflict resolution call.
type ResolveResult struct {
	Success  bool     `json:"success"`
	Resolved int      `json:"resolved"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

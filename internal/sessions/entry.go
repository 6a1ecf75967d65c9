// Package sessions implements the append-only branching conversation store:
// an on-disk forest of message entries addressed by monotonic id, with
// parent pointers, lineage reconstruction, compaction, and import/export.
package sessions

import (
	"fmt"

	"github.com/loomrun/loom/pkg/models"
)

// RecordType discriminates the lines of a session file.
type RecordType string

const (
	RecordMeta  RecordType = "meta"
	RecordEntry RecordType = "entry"
)

// SchemaVersion is the current session-file schema version.
const SchemaVersion = 1

// MetaRecord is the first line of every session file.
type MetaRecord struct {
	RecordType    RecordType `json:"record_type"`
	SchemaVersion int        `json:"schema_version"`
}

// EntryRecord is the on-disk shape of a SessionEntry.
type EntryRecord struct {
	RecordType RecordType     `json:"record_type"`
	ID         uint64         `json:"id"`
	ParentID   *uint64        `json:"parent_id"`
	Message    models.Message `json:"message"`
}

// SessionEntry is one node of the branching conversation forest.
type SessionEntry struct {
	ID       uint64
	ParentID *uint64
	Message  models.Message
}

// IsRoot reports whether the entry has no parent.
func (e SessionEntry) IsRoot() bool {
	return e.ParentID == nil
}

func (e SessionEntry) toRecord() EntryRecord {
	return EntryRecord{RecordType: RecordEntry, ID: e.ID, ParentID: e.ParentID, Message: e.Message}
}

func validateGraph(entries []SessionEntry) error {
	seen := make(map[uint64]struct{}, len(entries))
	var lastID uint64
	for i, e := range entries {
		if i > 0 && e.ID <= lastID {
			return fmt.Errorf("entry %d: ids must be strictly increasing (got %d after %d)", i, e.ID, lastID)
		}
		lastID = e.ID
		if e.ParentID != nil {
			if _, ok := seen[*e.ParentID]; !ok {
				return fmt.Errorf("entry %d: parent_id %d does not exist", i, *e.ParentID)
			}
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

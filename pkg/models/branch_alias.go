package models

import (
	"fmt"
	"time"
)

// BranchAlias names a branch tip in a session's entry forest so it can be
// addressed by a short, stable name instead of its raw entry id.
type BranchAlias struct {
	Name      string    `json:"name"`
	EntryID   uint64    `json:"entry_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBranchAlias constructs an alias pointing at entryID.
func NewBranchAlias(name string, entryID uint64, createdAt time.Time) BranchAlias {
	return BranchAlias{Name: name, EntryID: entryID, CreatedAt: createdAt}
}

// Validate reports whether the alias has a usable name and a non-zero
// target entry.
func (a BranchAlias) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("branch alias: name is required")
	}
	if a.EntryID == 0 {
		return fmt.Errorf("branch alias: entry_id is required")
	}
	return nil
}

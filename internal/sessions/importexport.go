package sessions

import (
	"fmt"

	"github.com/loomrun/loom/pkg/models"
)

// ImportMode selects how Import combines a source session into this store.
type ImportMode string

const (
	ImportMerge   ImportMode = "merge"
	ImportReplace ImportMode = "replace"
)

// IDRemap maps a source entry's original id to the id it was assigned in
// the destination store after import.
type IDRemap map[uint64]uint64

// Export writes a new session file at destination containing only the
// lineage of head (root through head), renumbered starting at 1.
func Export(destination string, src *Store, head *uint64) error {
	lineageIDs, err := src.lineageIDs(head)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	dst, _, err := Load(destination, DefaultLockConfig())
	if err != nil {
		return fmt.Errorf("export: open destination: %w", err)
	}
	defer dst.Close()

	var parent *uint64
	for _, id := range lineageIDs {
		idx, _ := src.indexOf(id)
		msg := src.entries[idx].Message
		newHead, err := dst.AppendMessages(parent, []models.Message{msg})
		if err != nil {
			return fmt.Errorf("export: append entry %d: %w", id, err)
		}
		parent = newHead
	}
	return nil
}

// lineageIDs returns the ids from root to head, in order.
func (s *Store) lineageIDs(head *uint64) ([]uint64, error) {
	if head == nil {
		return nil, fmt.Errorf("head is required")
	}
	idx, ok := s.indexOf(*head)
	if !ok {
		return nil, fmt.Errorf("entry %d does not exist", *head)
	}
	var chain []uint64
	for {
		e := s.entries[idx]
		chain = append(chain, e.ID)
		if e.ParentID == nil {
			break
		}
		idx, ok = s.indexOf(*e.ParentID)
		if !ok {
			return nil, fmt.Errorf("parent %d does not exist", *e.ParentID)
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Import validates source and combines it into dst per mode. In merge mode,
// source entries are appended with ids remapped to the next available
// range; roots remain roots (their parent stays nil). In replace mode, dst's
// contents are atomically swapped for source's. Returns the id remap table
// (identity in replace mode).
func Import(dst *Store, source *Store, mode ImportMode) (IDRemap, error) {
	if err := validateGraph(source.entries); err != nil {
		return nil, fmt.Errorf("import: source session invalid: %w", err)
	}

	switch mode {
	case ImportReplace:
		if err := dst.rewrite(append([]SessionEntry(nil), source.entries...)); err != nil {
			return nil, fmt.Errorf("import: replace: %w", err)
		}
		remap := make(IDRemap, len(source.entries))
		for _, e := range source.entries {
			remap[e.ID] = e.ID
		}
		return remap, nil

	case ImportMerge:
		remap := make(IDRemap, len(source.entries))
		appended := make([]SessionEntry, 0, len(source.entries))
		for _, e := range source.entries {
			newID := dst.nextID
			dst.nextID++
			var parent *uint64
			if e.ParentID != nil {
				mapped, ok := remap[*e.ParentID]
				if !ok {
					return nil, fmt.Errorf("import: merge: entry %d references unmapped parent %d", e.ID, *e.ParentID)
				}
				parent = &mapped
			}
			remap[e.ID] = newID
			appended = append(appended, SessionEntry{ID: newID, ParentID: parent, Message: e.Message})
		}

		f, err := dst.openAppend()
		if err != nil {
			return nil, fmt.Errorf("import: merge: %w", err)
		}
		defer f.Close()
		for _, e := range appended {
			if err := writeLine(f, e.toRecord()); err != nil {
				return nil, fmt.Errorf("import: merge: write entry %d: %w", e.ID, err)
			}
		}
		dst.entries = append(dst.entries, appended...)
		return remap, nil

	default:
		return nil, fmt.Errorf("import: unknown mode %q", mode)
	}
}

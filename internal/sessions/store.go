package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loomrun/loom/pkg/models"
)

// LoadReport describes the outcome of replaying a session file, including
// the index of the first structural violation encountered (if any) and
// whether a trailing partial line was ignored.
type LoadReport struct {
	ViolationIndex  int // -1 if the file is well-formed
	ViolationErr    error
	TruncatedTrailer bool
}

// Store owns one session file's exclusive writer handle and its in-memory
// replay of the append-only entry forest.
type Store struct {
	path    string
	lock    *FileLock
	entries []SessionEntry
	nextID  uint64
}

// Load opens or creates the session file at path, acquiring its lock and
// replaying all well-formed entry records into memory. A missing file is
// created with just the meta record. A malformed trailing line (no final
// newline at EOF) is ignored, not an error.
func Load(path string, cfg LockConfig) (*Store, LoadReport, error) {
	lock, err := AcquireLock(path, cfg)
	if err != nil {
		return nil, LoadReport{}, err
	}

	s := &Store{path: path, lock: lock, nextID: 1}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = lock.Release()
		return nil, LoadReport{}, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		_ = lock.Release()
		return nil, LoadReport{}, fmt.Errorf("stat session file: %w", err)
	}

	report := LoadReport{ViolationIndex: -1}
	if info.Size() == 0 {
		if err := writeLine(f, MetaRecord{RecordType: RecordMeta, SchemaVersion: SchemaVersion}); err != nil {
			_ = lock.Release()
			return nil, report, fmt.Errorf("write meta record: %w", err)
		}
		return s, report, nil
	}

	entries, truncated, err := replay(f)
	report.TruncatedTrailer = truncated
	if err != nil {
		_ = lock.Release()
		return nil, report, err
	}

	if err := validateGraph(entries); err != nil {
		report.ViolationIndex = len(entries)
		report.ViolationErr = err
		_ = lock.Release()
		return nil, report, fmt.Errorf("validate session graph: %w", err)
	}

	s.entries = entries
	if len(entries) > 0 {
		s.nextID = entries[len(entries)-1].ID + 1
	}
	return s, report, nil
}

// replay reads every complete JSON line after the meta record. A final line
// lacking a trailing newline (a partial write interrupted by a crash) is
// silently dropped, per the crash-safety invariant in §4.1.
func replay(f *os.File) (entries []SessionEntry, truncatedTrailer bool, err error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, false, fmt.Errorf("seek session file: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rt struct {
			RecordType RecordType `json:"record_type"`
		}
		if err := json.Unmarshal(line, &rt); err != nil {
			// A line that fails to parse at all, at EOF, is treated as a
			// partial trailing write rather than corruption.
			truncatedTrailer = true
			continue
		}
		if first {
			first = false
			if rt.RecordType != RecordMeta {
				return nil, false, fmt.Errorf("session file missing meta record")
			}
			continue
		}
		if rt.RecordType != RecordEntry {
			continue
		}
		var rec EntryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, false, fmt.Errorf("parse entry record: %w", err)
		}
		entries = append(entries, SessionEntry{ID: rec.ID, ParentID: rec.ParentID, Message: rec.Message})
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("scan session file: %w", err)
	}
	return entries, truncatedTrailer, nil
}

func writeLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := f.Seek(0, 2); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// Close releases the session's file lock.
func (s *Store) Close() error {
	return s.lock.Release()
}

// AppendMessages atomically allocates consecutive ids for messages under
// parentID, writes them as entry records with an fsync, and returns the id
// of the last entry appended (the new head). Returns nil for empty input.
func (s *Store) AppendMessages(parentID *uint64, messages []models.Message) (*uint64, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if parentID != nil {
		if _, ok := s.indexOf(*parentID); !ok {
			return nil, fmt.Errorf("append: parent_id %d does not exist", *parentID)
		}
	}

	f, err := s.openAppend()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	newEntries := make([]SessionEntry, 0, len(messages))
	parent := parentID
	var head uint64
	for _, msg := range messages {
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("append: %w", err)
		}
		id := s.nextID
		s.nextID++
		entry := SessionEntry{ID: id, ParentID: parent, Message: msg}
		if err := writeLine(f, entry.toRecord()); err != nil {
			return nil, fmt.Errorf("append entry %d: %w", id, err)
		}
		newEntries = append(newEntries, entry)
		parent = &id
		head = id
	}
	s.entries = append(s.entries, newEntries...)
	return &head, nil
}

func (s *Store) openAppend() (*os.File, error) {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session file for append: %w", err)
	}
	return f, nil
}

func (s *Store) indexOf(id uint64) (int, bool) {
	for i, e := range s.entries {
		if e.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Entries returns all entries in storage (ascending id) order.
func (s *Store) Entries() []SessionEntry {
	return s.entries
}

// HeadID returns the highest entry id in the file, if any.
func (s *Store) HeadID() *uint64 {
	if len(s.entries) == 0 {
		return nil
	}
	id := s.entries[len(s.entries)-1].ID
	return &id
}

// BranchTips returns every entry that is not the parent of any other entry.
func (s *Store) BranchTips() []SessionEntry {
	hasChild := make(map[uint64]bool, len(s.entries))
	for _, e := range s.entries {
		if e.ParentID != nil {
			hasChild[*e.ParentID] = true
		}
	}
	var tips []SessionEntry
	for _, e := range s.entries {
		if !hasChild[e.ID] {
			tips = append(tips, e)
		}
	}
	return tips
}

// LineageMessages walks parents from head to root and returns the messages
// root-first.
func (s *Store) LineageMessages(head *uint64) ([]models.Message, error) {
	if head == nil {
		return nil, nil
	}
	idx, ok := s.indexOf(*head)
	if !ok {
		return nil, fmt.Errorf("lineage: entry %d does not exist", *head)
	}
	var chain []models.Message
	for {
		e := s.entries[idx]
		chain = append(chain, e.Message)
		if e.ParentID == nil {
			break
		}
		idx, ok = s.indexOf(*e.ParentID)
		if !ok {
			return nil, fmt.Errorf("lineage: parent %d does not exist", *e.ParentID)
		}
	}
	// reverse to root-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// PathDir returns the directory containing the session file, used by
// callers that need to place sibling artifacts (exports, repairs) beside it.
func (s *Store) PathDir() string {
	return filepath.Dir(s.path)
}

// Path returns the session file's path.
func (s *Store) Path() string {
	return s.path
}

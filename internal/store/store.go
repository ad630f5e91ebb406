package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"worklog/internal/model"
)

// Options configures a TaskStore. Only Path is required.
type Options struct {
	Path   string
	FS     FS
	Clock  func() time.Time
	// NewID generates record ids. An id that was already issued by this store,
	// including ids of deleted records, is rejected and the generator is retried.
	NewID  func() string
	Logger *log.Logger
}

// TaskStore owns the task collection and its backing file. Reads see an immutable
// snapshot; writes are serialized and become visible only after the file is replaced.
type TaskStore struct {
	path  string
	fs    FS
	clock func() time.Time
	newID func() string
	log   *log.Logger

	mu      sync.Mutex
	issued  map[string]struct{} // every id seen since Open, guarded by mu
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	records []model.TaskRecord
	index   map[string]int
}

func newSnapshot(records []model.TaskRecord) *snapshot {
	idx := make(map[string]int, len(records))
	for i, r := range records {
		idx[r.ID] = i
	}
	return &snapshot{records: records, index: idx}
}

func (s *snapshot) appended(rec model.TaskRecord) *snapshot {
	records := make([]model.TaskRecord, len(s.records), len(s.records)+1)
	copy(records, s.records)
	return newSnapshot(append(records, rec))
}

func (s *snapshot) replaced(i int, rec model.TaskRecord) *snapshot {
	records := make([]model.TaskRecord, len(s.records))
	copy(records, s.records)
	records[i] = rec
	return newSnapshot(records)
}

func (s *snapshot) removed(i int) *snapshot {
	records := make([]model.TaskRecord, 0, len(s.records)-1)
	records = append(records, s.records[:i]...)
	records = append(records, s.records[i+1:]...)
	return newSnapshot(records)
}

// Open loads the store at opts.Path. A missing file yields an empty store; a file
// that cannot be decoded yields a *CorruptStoreError and is not modified.
func Open(opts Options) (*TaskStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("open task store: path is required")
	}
	s := &TaskStore{
		path:  filepath.Clean(opts.Path),
		fs:    opts.FS,
		clock: opts.Clock,
		newID: opts.NewID,
		log:   opts.Logger,
	}
	if s.fs == nil {
		s.fs = OSFS{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.log == nil {
		s.log = log.Default()
	}

	s.issued = make(map[string]struct{})
	records, upgraded, err := s.load()
	if err != nil {
		return nil, err
	}
	snap := newSnapshot(records)
	if upgraded > 0 {
		if err := s.persist(snap.records); err != nil {
			return nil, err
		}
		s.log.Printf("[info] assigned ids to %d legacy task records in %s", upgraded, s.path)
	}
	s.current.Store(snap)
	s.log.Printf("[info] task store opened path=%s records=%d", s.path, len(records))
	return s, nil
}

func (s *TaskStore) load() ([]model.TaskRecord, int, error) {
	data, err := s.fs.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, &IOError{Op: "read", Path: s.path, Err: err}
	}

	var records []model.TaskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, &CorruptStoreError{Path: s.path, Err: err}
	}

	seen := make(map[string]struct{}, len(records))
	upgraded := 0
	for i := range records {
		rec := &records[i]
		if err := checkLoaded(rec); err != nil {
			return nil, 0, &CorruptStoreError{Path: s.path, Err: fmt.Errorf("record %d: %w", i, err)}
		}
		if rec.ID == "" {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, 0, &CorruptStoreError{Path: s.path, Err: fmt.Errorf("record %d: duplicate id %q", i, rec.ID)}
		}
		seen[rec.ID] = struct{}{}
	}

	// Legacy files hold records without ids.
	for i := range records {
		if records[i].ID != "" {
			continue
		}
		id, err := s.freshID(seen)
		if err != nil {
			return nil, 0, err
		}
		records[i].ID = id
		seen[id] = struct{}{}
		upgraded++
	}
	for id := range seen {
		s.issued[id] = struct{}{}
	}
	return records, upgraded, nil
}

func (s *TaskStore) freshID(taken map[string]struct{}) (string, error) {
	for range 3 {
		id := s.newID()
		if id == "" {
			continue
		}
		if _, dup := taken[id]; !dup {
			return id, nil
		}
	}
	return "", &IOError{Op: "assign id", Path: s.path, Err: ErrIDCollision}
}

// persist writes records to a temp file next to the target and renames it into place.
func (s *TaskStore) persist(records []model.TaskRecord) error {
	if records == nil {
		records = []model.TaskRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return &IOError{Op: "encode", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := s.fs.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return &IOError{Op: "create temp", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return &IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		return &IOError{Op: "rename", Path: s.path, Err: err}
	}
	committed = true

	if ds, ok := s.fs.(dirSyncer); ok {
		if err := ds.SyncDir(dir); err != nil {
			s.log.Printf("[warn] sync dir %s: %v", dir, err)
		}
	}
	return nil
}

// Path returns the backing file.
func (s *TaskStore) Path() string { return s.path }

// Len returns the number of records in the committed snapshot.
func (s *TaskStore) Len() int { return len(s.current.Load().records) }

// List yields records matching f in insertion order. Every iteration reads the
// latest committed snapshot.
func (s *TaskStore) List(f model.Filter) iter.Seq[model.TaskRecord] {
	return func(yield func(model.TaskRecord) bool) {
		snap := s.current.Load()
		for _, r := range snap.records {
			if !f.Match(r) {
				continue
			}
			if !yield(r.Clone()) {
				return
			}
		}
	}
}

// Get returns the record with the given id.
func (s *TaskStore) Get(id string) (model.TaskRecord, error) {
	snap := s.current.Load()
	i, ok := snap.index[id]
	if !ok {
		return model.TaskRecord{}, &NotFoundError{ID: id}
	}
	return snap.records[i].Clone(), nil
}

// Create validates in, assigns an id and timestamps, and persists the new record.
func (s *TaskStore) Create(ctx context.Context, in model.TaskInput) (model.TaskRecord, error) {
	rec, err := newRecord(in)
	if err != nil {
		return model.TaskRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.TaskRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	id, err := s.freshID(s.issued)
	if err != nil {
		return model.TaskRecord{}, err
	}
	now := s.clock().UTC()
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now

	next := cur.appended(rec)
	if err := s.persist(next.records); err != nil {
		return model.TaskRecord{}, err
	}
	s.current.Store(next)
	s.issued[id] = struct{}{}
	s.log.Printf("[info] task created id=%s project=%q status=%s", rec.ID, rec.Project, rec.Status)
	return rec.Clone(), nil
}

// Update merges patch into the record with the given id and persists the result.
func (s *TaskStore) Update(ctx context.Context, id string, patch model.TaskPatch) (model.TaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.TaskRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	i, ok := cur.index[id]
	if !ok {
		return model.TaskRecord{}, &NotFoundError{ID: id}
	}
	rec, err := applyPatch(cur.records[i], patch)
	if err != nil {
		return model.TaskRecord{}, err
	}
	rec.UpdatedAt = s.clock().UTC()

	next := cur.replaced(i, rec)
	if err := s.persist(next.records); err != nil {
		return model.TaskRecord{}, err
	}
	s.current.Store(next)
	s.log.Printf("[info] task updated id=%s status=%s", rec.ID, rec.Status)
	return rec.Clone(), nil
}

// Delete removes the record with the given id. Deleting an absent id is a *NotFoundError.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	i, ok := cur.index[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	next := cur.removed(i)
	if err := s.persist(next.records); err != nil {
		return err
	}
	s.current.Store(next)
	s.log.Printf("[info] task deleted id=%s", id)
	return nil
}

package service

import (
	"context"
	"iter"
	"sort"
	"strings"
	"time"

	"worklog/internal/model"
	"worklog/internal/store"
)

// TaskStore is the subset of *store.TaskStore the services rely on.
type TaskStore interface {
	Create(ctx context.Context, in model.TaskInput) (model.TaskRecord, error)
	Get(id string) (model.TaskRecord, error)
	List(f model.Filter) iter.Seq[model.TaskRecord]
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.TaskRecord, error)
	Delete(ctx context.Context, id string) error
	AggregateWhere(f model.Filter, fields ...model.GroupField) (store.Summary, error)
}

// minPrefix is the shortest id prefix accepted by Resolve.
const minPrefix = 4

// TaskService wraps work-log actions shared by the CLI, the bot and the HTTP API.
type TaskService struct {
	store TaskStore
	clock func() time.Time
}

func NewTaskService(st TaskStore, clock func() time.Time) *TaskService {
	if clock == nil {
		clock = time.Now
	}
	return &TaskService{store: st, clock: clock}
}

// CreateTask fills form defaults (today, now, one repetition, Done) before creating.
func (s *TaskService) CreateTask(ctx context.Context, in model.TaskInput) (model.TaskRecord, error) {
	now := s.clock()
	if strings.TrimSpace(in.OccurredDate) == "" {
		in.OccurredDate = now.Format(model.DateLayout)
	}
	if strings.TrimSpace(in.StartTime) == "" {
		in.StartTime = now.Format(model.TimeLayout)
	}
	if in.RepeatCount == 0 {
		in.RepeatCount = 1
	}
	if strings.TrimSpace(in.Status) == "" {
		in.Status = string(model.StatusDone)
	}
	return s.store.Create(ctx, in)
}

func (s *TaskService) List(f model.Filter) []model.TaskRecord {
	var out []model.TaskRecord
	for rec := range s.store.List(f) {
		out = append(out, rec)
	}
	return out
}

// ListOpen returns records that are neither done nor abandoned.
func (s *TaskService) ListOpen(f model.Filter) []model.TaskRecord {
	var out []model.TaskRecord
	for rec := range s.store.List(f) {
		if rec.Status.Open() {
			out = append(out, rec)
		}
	}
	return out
}

// Overdue returns overdue records as of asOf, earliest deadline first.
func (s *TaskService) Overdue(f model.Filter, asOf time.Time) []model.TaskRecord {
	var out []model.TaskRecord
	for rec := range s.store.List(f) {
		if model.IsOverdue(rec, asOf) {
			out = append(out, rec)
		}
	}
	sortByDeadline(out)
	return out
}

// Resolve finds a record by full id or by a unique id prefix.
func (s *TaskService) Resolve(ref string) (model.TaskRecord, error) {
	ref = strings.TrimSpace(ref)
	if rec, err := s.store.Get(ref); err == nil {
		return rec, nil
	}
	if len(ref) < minPrefix {
		return model.TaskRecord{}, &store.NotFoundError{ID: ref}
	}

	var match model.TaskRecord
	found := 0
	for rec := range s.store.List(model.Filter{}) {
		if strings.HasPrefix(rec.ID, ref) {
			match = rec
			found++
		}
	}
	switch found {
	case 0:
		return model.TaskRecord{}, &store.NotFoundError{ID: ref}
	case 1:
		return match, nil
	default:
		return model.TaskRecord{}, &store.ValidationError{Field: "id", Reason: "prefix " + ref + " matches several tasks"}
	}
}

func (s *TaskService) UpdateTask(ctx context.Context, ref string, patch model.TaskPatch) (model.TaskRecord, error) {
	rec, err := s.Resolve(ref)
	if err != nil {
		return model.TaskRecord{}, err
	}
	return s.store.Update(ctx, rec.ID, patch)
}

// CompleteTask marks a record done with full progress.
func (s *TaskService) CompleteTask(ctx context.Context, ref string) (model.TaskRecord, error) {
	done := string(model.StatusDone)
	full := 100
	return s.UpdateTask(ctx, ref, model.TaskPatch{Status: &done, Progress: &full})
}

func (s *TaskService) DeleteTask(ctx context.Context, ref string) error {
	rec, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, rec.ID)
}

// Summary groups the records matching f.
func (s *TaskService) Summary(f model.Filter, fields ...model.GroupField) (store.Summary, error) {
	return s.store.AggregateWhere(f, fields...)
}

// StatusCounts returns the number of records per status, including zero counts.
func (s *TaskService) StatusCounts(f model.Filter) (map[model.Status]int, error) {
	sum, err := s.store.AggregateWhere(f, model.GroupByStatus)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.Status]int, len(model.Statuses))
	for _, st := range model.Statuses {
		g, _ := sum.Lookup(string(st))
		counts[st] = g.Count
	}
	return counts, nil
}

func sortByDeadline(records []model.TaskRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Deadline.Before(records[j].Deadline)
	})
}

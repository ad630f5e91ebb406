package store

import (
	"strings"

	"worklog/internal/model"
)

// Group is one aggregation bucket. Key holds one value per grouping field.
type Group struct {
	Key     []string
	Count   int
	Records []model.TaskRecord
}

// Summary is the grouped view of one snapshot. Groups appear in order of first occurrence.
type Summary struct {
	Fields []model.GroupField
	Groups []Group
	Total  int
}

// Lookup finds the group with the given key values.
func (s Summary) Lookup(values ...string) (Group, bool) {
	want := strings.Join(values, keySep)
	for _, g := range s.Groups {
		if strings.Join(g.Key, keySep) == want {
			return g, true
		}
	}
	return Group{}, false
}

// Counts flattens the summary into a key -> count map, keys joined with " / ".
func (s Summary) Counts() map[string]int {
	out := make(map[string]int, len(s.Groups))
	for _, g := range s.Groups {
		out[strings.Join(g.Key, " / ")] = g.Count
	}
	return out
}

const keySep = "\x1f"

// Aggregate groups the current snapshot by fields.
func (s *TaskStore) Aggregate(fields ...model.GroupField) (Summary, error) {
	return s.AggregateWhere(model.Filter{}, fields...)
}

// AggregateWhere groups the records matching f in the current snapshot.
func (s *TaskStore) AggregateWhere(f model.Filter, fields ...model.GroupField) (Summary, error) {
	if len(fields) == 0 {
		return Summary{}, invalid("group_by", "at least one field is required")
	}
	for _, field := range fields {
		if _, err := model.ParseGroupField(string(field)); err != nil {
			return Summary{}, invalid("group_by", "%v", err)
		}
	}

	sum := Summary{Fields: append([]model.GroupField(nil), fields...)}
	positions := make(map[string]int)
	for rec := range s.List(f) {
		key := make([]string, len(fields))
		for i, field := range fields {
			key[i] = field.Value(rec)
		}
		joined := strings.Join(key, keySep)
		pos, ok := positions[joined]
		if !ok {
			pos = len(sum.Groups)
			positions[joined] = pos
			sum.Groups = append(sum.Groups, Group{Key: key})
		}
		sum.Groups[pos].Count++
		sum.Groups[pos].Records = append(sum.Groups[pos].Records, rec)
		sum.Total++
	}
	return sum, nil
}

package model

import (
	"fmt"
	"strings"
)

// Filter selects records for listing. Zero fields match everything; text fields
// compare case-insensitively after trimming. From and To bound OccurredDate inclusively.
type Filter struct {
	Project    string
	Status     Status
	Department string
	Category   string
	Name       string
	From       Date
	To         Date
}

func (f Filter) Match(r TaskRecord) bool {
	if !textMatch(f.Project, r.Project) || !textMatch(f.Department, r.Department) ||
		!textMatch(f.Category, r.Category) || !textMatch(f.Name, r.Name) {
		return false
	}
	if f.Status != "" && f.Status != r.Status {
		return false
	}
	if f.From != "" && r.OccurredDate.Before(f.From) {
		return false
	}
	if f.To != "" && f.To.Before(r.OccurredDate) {
		return false
	}
	return true
}

func textMatch(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, strings.TrimSpace(got))
}

// GroupField names a record attribute usable as an aggregation key.
type GroupField string

const (
	GroupByStatus     GroupField = "status"
	GroupByProject    GroupField = "project"
	GroupByCategory   GroupField = "category"
	GroupByDepartment GroupField = "department"
	GroupByName       GroupField = "name"
	GroupByDate       GroupField = "date"
	GroupByMonth      GroupField = "month"
)

var groupFields = []GroupField{
	GroupByStatus, GroupByProject, GroupByCategory, GroupByDepartment, GroupByName, GroupByDate, GroupByMonth,
}

// ParseGroupField validates a user-supplied field name.
func ParseGroupField(raw string) (GroupField, error) {
	name := GroupField(strings.ToLower(strings.TrimSpace(raw)))
	for _, f := range groupFields {
		if f == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("cannot group by %q", raw)
}

// Value extracts the grouping key of r for this field.
func (f GroupField) Value(r TaskRecord) string {
	switch f {
	case GroupByStatus:
		return string(r.Status)
	case GroupByProject:
		return r.Project
	case GroupByCategory:
		return r.Category
	case GroupByDepartment:
		return r.Department
	case GroupByName:
		return r.Name
	case GroupByDate:
		return string(r.OccurredDate)
	case GroupByMonth:
		return r.OccurredDate.Month()
	default:
		return ""
	}
}

package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a logged work item.
type Status string

const (
	StatusDone          Status = "Done"
	StatusInProgress    Status = "InProgress"
	StatusPendingReview Status = "PendingReview"
	StatusOnHold        Status = "OnHold"
	StatusAbandoned     Status = "Abandoned"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusDone, StatusInProgress, StatusPendingReview, StatusOnHold, StatusAbandoned}

// legacyStatuses maps the Vietnamese labels of older dashboard files.
var legacyStatuses = map[string]Status{
	"hoàn thành":     StatusDone,
	"đang thực hiện": StatusInProgress,
	"chờ duyệt":      StatusPendingReview,
	"ngưng chờ":      StatusOnHold,
	"bỏ":             StatusAbandoned,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts canonical names (case-insensitive, "_", "-" and spaces ignored)
// and the dashboard's legacy labels.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	if st, ok := legacyStatuses[strings.ToLower(trimmed)]; ok {
		return st, nil
	}
	folded := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(trimmed))
	for _, known := range Statuses {
		if strings.ToLower(string(known)) == folded {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Open reports whether work on the item is still expected.
func (s Status) Open() bool {
	return s != StatusDone && s != StatusAbandoned
}

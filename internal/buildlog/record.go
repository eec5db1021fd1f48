package buildlog

import (
	"encoding/json"
	"slices"
	"time"
)

// Status values reported in a Record.
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Record summarizes one build.
type Record struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	DurationMS    int64      `json:"duration_ms"`
	Pages         int        `json:"pages"`
	Variants      int        `json:"variants"`
	AssetFailures int        `json:"asset_failures"`
	ChangedPages  []string   `json:"changed_pages,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// outcome is the payload stored with terminal events.
type outcome struct {
	DurationMS    int64    `json:"duration_ms"`
	Pages         int      `json:"pages"`
	Variants      int      `json:"variants"`
	AssetFailures int      `json:"asset_failures"`
	ChangedPages  []string `json:"changed_pages,omitempty"`
	Error         string   `json:"error,omitempty"`
}

var terminalStatus = map[EventType]string{
	EventSucceeded: StatusSuccess,
	EventFailed:    StatusFailed,
	EventCanceled:  StatusCanceled,
}

// project folds ordered events into records, newest build first.
func project(events []Event) []Record {
	byID := map[string]*Record{}
	var order []string
	for _, e := range events {
		rec, ok := byID[e.BuildID]
		if !ok {
			rec = &Record{ID: e.BuildID, Status: StatusRunning}
			byID[e.BuildID] = rec
			order = append(order, e.BuildID)
		}
		if e.Type == EventStarted {
			rec.StartedAt = e.Timestamp
			continue
		}
		status, terminal := terminalStatus[e.Type]
		if !terminal {
			continue
		}
		finished := e.Timestamp
		rec.Status = status
		rec.FinishedAt = &finished

		var out outcome
		if len(e.Payload) > 0 && json.Unmarshal(e.Payload, &out) == nil {
			rec.DurationMS = out.DurationMS
			rec.Pages = out.Pages
			rec.Variants = out.Variants
			rec.AssetFailures = out.AssetFailures
			rec.ChangedPages = out.ChangedPages
			rec.Error = out.Error
		}
	}

	slices.Reverse(order)
	records := make([]Record, 0, len(order))
	for _, id := range order {
		records = append(records, *byID[id])
	}
	return records
}

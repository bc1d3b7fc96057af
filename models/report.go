package models

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

type Status string

const (
	StatusOK       Status = "OK"
	StatusNotFound Status = "NOT FOUND"
	StatusInvalid  Status = "INVALID"
	StatusAPIError Status = "API ERROR"
)

type ReportEntry struct {
	GUID   string
	Status Status
}

// Report maps dashboard GUIDs to their final status for one run, keeping the
// order in which GUIDs were first recorded.
type Report struct {
	RunID    string
	order    []string
	statuses map[string]Status
}

func NewReport(runID string) *Report {
	return &Report{
		RunID:    runID,
		statuses: map[string]Status{},
	}
}

func (r *Report) Set(guid string, status Status) {
	if _, ok := r.statuses[guid]; !ok {
		r.order = append(r.order, guid)
	}
	r.statuses[guid] = status
}

func (r *Report) Status(guid string) (Status, bool) {
	s, ok := r.statuses[guid]
	return s, ok
}

func (r *Report) Len() int {
	return len(r.order)
}

func (r *Report) Entries() []ReportEntry {
	return lo.Map(r.order, func(guid string, _ int) ReportEntry {
		return ReportEntry{GUID: guid, Status: r.statuses[guid]}
	})
}

func (r *Report) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, s := range r.statuses {
		counts[s]++
	}
	return counts
}

// String renders one `<guid>: <status>` line per dashboard.
func (r *Report) String() string {
	var b strings.Builder
	for _, e := range r.Entries() {
		fmt.Fprintf(&b, "%s: %s\n", e.GUID, e.Status)
	}
	return b.String()
}

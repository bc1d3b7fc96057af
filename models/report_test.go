package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport(t *testing.T) {
	r := NewReport("run-1")
	r.Set("b", StatusOK)
	r.Set("a", StatusNotFound)
	r.Set("c", StatusOK)
	r.Set("b", StatusAPIError)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []ReportEntry{
		{GUID: "b", Status: StatusAPIError},
		{GUID: "a", Status: StatusNotFound},
		{GUID: "c", Status: StatusOK},
	}, r.Entries())

	s, ok := r.Status("a")
	assert.True(t, ok)
	assert.Equal(t, StatusNotFound, s)

	_, ok = r.Status("missing")
	assert.False(t, ok)

	assert.Equal(t, map[Status]int{StatusAPIError: 1, StatusNotFound: 1, StatusOK: 1}, r.Counts())
	assert.Equal(t, "b: API ERROR\na: NOT FOUND\nc: OK\n", r.String())
}

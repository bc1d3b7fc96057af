package dashboards

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when NerdGraph has no dashboard entity for a GUID.
type NotFoundError struct {
	GUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("failed to get dashboard entity for %s", e.GUID)
}

// ValidationError reports a dashboard tree node that does not have the shape
// the transformers rely on. PageGUID and WidgetID are empty when the
// offending node sits above that level.
type ValidationError struct {
	DashboardGUID string
	PageGUID      string
	WidgetID      string
	Field         string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid %s found", e.Field)
	if e.WidgetID != "" {
		fmt.Fprintf(&b, " in widget %s", e.WidgetID)
	}
	if e.PageGUID != "" {
		fmt.Fprintf(&b, " for page %s", e.PageGUID)
	}
	fmt.Fprintf(&b, " for dashboard %s", e.DashboardGUID)
	return b.String()
}

// logKeyvals returns the locating context of the error for structured logs.
func (e *ValidationError) logKeyvals() []any {
	return []any{"field", e.Field, "page", e.PageGUID, "widget", e.WidgetID}
}

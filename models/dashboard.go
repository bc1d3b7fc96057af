package models

// Dashboard is a dashboard entity as returned by NerdGraph: a loosely typed
// tree of map[string]any, []any and scalars. Only the fields the transformers
// touch are inspected; everything else is passed through untouched.
type Dashboard map[string]any

// DashboardConfig is one entry of the `dashboards` list of the batch config.
type DashboardConfig struct {
	GUID        string
	RefreshRate int
}

package dashboards

import (
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cast"

	"github.com/senpro-it/nr-chart-refresh-updater/models"
)

// WidgetTransformer mutates a single widget in place. pageGUID and widgetID
// locate the widget for logs and errors.
type WidgetTransformer func(pageGUID string, widgetID string, widget map[string]any) error

// Chain runs transformers in order on each widget, stopping at the first error.
func Chain(transformers ...WidgetTransformer) WidgetTransformer {
	return func(pageGUID string, widgetID string, widget map[string]any) error {
		for _, fn := range transformers {
			if err := fn(pageGUID, widgetID, widget); err != nil {
				return err
			}
		}
		return nil
	}
}

// ForEachWidget calls fn for every widget of every page of dashboard.
//
// Missing or empty `pages` and `widgets` are skipped. Any node of the wrong
// type, at any level, aborts the walk with a ValidationError before fn sees
// the offending widget.
func ForEachWidget(logger *log.Logger, guid string, dashboard models.Dashboard, fn WidgetTransformer) error {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("dashboard", guid)

	invalid := func(err *ValidationError) error {
		logger.Error(err.Error(), err.logKeyvals()...)
		return err
	}

	rawPages, ok := dashboard["pages"]
	if !ok || rawPages == nil {
		logger.Info("No pages found for dashboard")
		return nil
	}
	pages, ok := rawPages.([]any)
	if !ok {
		return invalid(&ValidationError{DashboardGUID: guid, Field: "pages"})
	}
	if len(pages) == 0 {
		logger.Info("No pages found for dashboard")
		return nil
	}

	for _, rawPage := range pages {
		page, ok := rawPage.(map[string]any)
		if !ok {
			return invalid(&ValidationError{DashboardGUID: guid, Field: "page definition"})
		}

		pageGUID := cast.ToString(page["guid"])
		logger.Debug("Processing page", "page", pageGUID)

		rawWidgets, ok := page["widgets"]
		if !ok || rawWidgets == nil {
			logger.Info("No widgets found in page", "page", pageGUID)
			continue
		}
		widgets, ok := rawWidgets.([]any)
		if !ok {
			return invalid(&ValidationError{DashboardGUID: guid, PageGUID: pageGUID, Field: "widgets definition"})
		}
		if len(widgets) == 0 {
			logger.Info("No widgets found in page", "page", pageGUID)
			continue
		}

		for _, rawWidget := range widgets {
			widget, ok := rawWidget.(map[string]any)
			if !ok {
				return invalid(&ValidationError{DashboardGUID: guid, PageGUID: pageGUID, Field: "widget definition"})
			}

			widgetID := cast.ToString(widget["id"])
			logger.Debug("Processing widget", "page", pageGUID, "widget", widgetID)

			if err := fn(pageGUID, widgetID, widget); err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					if verr.DashboardGUID == "" {
						verr.DashboardGUID = guid
					}
					return invalid(verr)
				}
				return err
			}
		}
	}
	return nil
}

// FixupLinkedEntities replaces the read-side `linkedEntities` list of
// `{guid}` objects with the write-side `linkedEntityGuids` list. Entries
// without a guid are dropped.
func FixupLinkedEntities(logger *log.Logger) WidgetTransformer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return func(pageGUID string, widgetID string, widget map[string]any) error {
		raw, present := widget["linkedEntities"]
		if raw == nil {
			logger.Debug("No linkedEntities found in widget", "page", pageGUID, "widget", widgetID)
			if present {
				delete(widget, "linkedEntities")
			}
			return nil
		}

		entities, ok := raw.([]any)
		if !ok {
			return &ValidationError{PageGUID: pageGUID, WidgetID: widgetID, Field: "linkedEntities"}
		}

		guids := make([]any, 0, len(entities))
		for _, rawEntity := range entities {
			entity, ok := rawEntity.(map[string]any)
			if !ok {
				return &ValidationError{PageGUID: pageGUID, WidgetID: widgetID, Field: "linked entity"}
			}
			if g, ok := entity["guid"]; ok && g != nil {
				guids = append(guids, g)
			}
		}

		widget["linkedEntityGuids"] = guids
		delete(widget, "linkedEntities")
		return nil
	}
}

// UpdateRefreshRate sets rawConfiguration.refreshRate.frequency to rate,
// creating rawConfiguration and refreshRate when they are missing. All other
// configuration keys are left as they are.
func UpdateRefreshRate(logger *log.Logger, rate int) WidgetTransformer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return func(pageGUID string, widgetID string, widget map[string]any) error {
		raw := widget["rawConfiguration"]
		if raw == nil {
			logger.Debug("No rawConfiguration found in widget", "page", pageGUID, "widget", widgetID)
			raw = map[string]any{}
			widget["rawConfiguration"] = raw
		}

		config, ok := raw.(map[string]any)
		if !ok {
			return &ValidationError{PageGUID: pageGUID, WidgetID: widgetID, Field: "rawConfiguration"}
		}

		rawRefresh, present := config["refreshRate"]
		if !present {
			config["refreshRate"] = map[string]any{"frequency": rate}
			return nil
		}

		refresh, ok := rawRefresh.(map[string]any)
		if !ok {
			return &ValidationError{PageGUID: pageGUID, WidgetID: widgetID, Field: "refreshRate"}
		}
		refresh["frequency"] = rate
		return nil
	}
}

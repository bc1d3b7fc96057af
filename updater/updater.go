package updater

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"
	"github.com/spf13/cast"

	"github.com/senpro-it/nr-chart-refresh-updater/backup"
	"github.com/senpro-it/nr-chart-refresh-updater/dashboards"
	"github.com/senpro-it/nr-chart-refresh-updater/models"
	"github.com/senpro-it/nr-chart-refresh-updater/nerdgraph"
)

// DashboardService reads and writes dashboard entities.
type DashboardService interface {
	Fetch(ctx context.Context, guid string, region nerdgraph.Region) (models.Dashboard, error)
	Update(ctx context.Context, guid string, dashboard models.Dashboard, region nerdgraph.Region) error
}

type Updater struct {
	// RunID identifies the run in the report.
	RunID string

	dashboards DashboardService
	backup     backup.Sink
	region     nerdgraph.Region
	logger     *log.Logger
}

func New(service DashboardService, sink backup.Sink, region nerdgraph.Region, logger *log.Logger) *Updater {
	if sink == nil {
		sink = backup.Nop{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Updater{
		dashboards: service,
		backup:     sink,
		region:     region,
		logger:     logger,
	}
}

// ParseDashboardConfig validates one entry of the `dashboards` list. Entries
// that are not objects, lack a guid or lack a positive refreshRate are
// rejected.
func ParseDashboardConfig(raw any) (models.DashboardConfig, bool) {
	entry, ok := toStringMap(raw)
	if !ok {
		return models.DashboardConfig{}, false
	}

	guid, err := cast.ToStringE(lookup(entry, "guid"))
	if err != nil || guid == "" {
		return models.DashboardConfig{}, false
	}

	rate, err := cast.ToIntE(lookup(entry, "refreshRate"))
	if err != nil || rate <= 0 {
		return models.DashboardConfig{}, false
	}

	return models.DashboardConfig{GUID: guid, RefreshRate: rate}, true
}

// Run processes every entry of the `dashboards` config value in order and returns the status of
// each processed GUID. Only not-found, validation and NerdGraph errors are
// recorded in the report; any other error stops the run and is returned with
// the report built so far.
func (u *Updater) Run(ctx context.Context, config any) (*models.Report, error) {
	report := models.NewReport(u.RunID)

	if config == nil {
		u.logger.Warn("No dashboards found in config")
		return report, nil
	}
	entries, ok := config.([]any)
	if !ok {
		u.logger.Warn("Invalid dashboards config", "dashboards", config)
		return report, nil
	}

	for _, raw := range entries {
		cfg, ok := ParseDashboardConfig(raw)
		if !ok {
			u.logger.Warn("Invalid dashboard config", "config", raw)
			continue
		}

		err := u.ProcessDashboard(ctx, cfg.GUID, cfg.RefreshRate)
		status, recovered := classify(err)
		if !recovered {
			return report, oops.
				In("updater.Run").
				With("guid", cfg.GUID).
				Wrap(err)
		}
		if err != nil {
			u.logger.Error("Error occurred while processing dashboard", "guid", cfg.GUID, "status", status, "err", err)
		}
		report.Set(cfg.GUID, status)
	}

	for _, e := range report.Entries() {
		u.logger.Info(e.GUID + ": " + string(e.Status))
	}
	counts := report.Counts()
	u.logger.Info("Run complete",
		"ok", counts[models.StatusOK],
		"notFound", counts[models.StatusNotFound],
		"invalid", counts[models.StatusInvalid],
		"apiError", counts[models.StatusAPIError],
	)
	return report, nil
}

// ProcessDashboard fetches one dashboard, rewrites linked entities, takes a
// backup, sets the refresh rate on every widget and writes it back.
func (u *Updater) ProcessDashboard(ctx context.Context, guid string, refreshRate int) error {
	logger := u.logger.With("guid", guid)
	logger.Info("Processing dashboard", "refreshRate", refreshRate)

	dashboard, err := u.dashboards.Fetch(ctx, guid, u.region)
	if err != nil {
		return err
	}

	if err := dashboards.ForEachWidget(logger, guid, dashboard, dashboards.FixupLinkedEntities(logger)); err != nil {
		return err
	}

	if err := u.backup.Write(guid, dashboard); err != nil {
		return err
	}

	if err := dashboards.ForEachWidget(logger, guid, dashboard, dashboards.UpdateRefreshRate(logger, refreshRate)); err != nil {
		return err
	}

	if err := u.dashboards.Update(ctx, guid, dashboard, u.region); err != nil {
		return err
	}

	logger.Info("Successfully processed dashboard", "refreshRate", refreshRate)
	return nil
}

// classify maps a processing error to its terminal status. The second return
// value is false for errors that must abort the run.
func classify(err error) (models.Status, bool) {
	var (
		notFound  *dashboards.NotFoundError
		invalid   *dashboards.ValidationError
		protocol  *nerdgraph.ProtocolError
		exhausted *nerdgraph.PaginationExhaustedError
	)
	switch {
	case err == nil:
		return models.StatusOK, true
	case errors.As(err, &notFound):
		return models.StatusNotFound, true
	case errors.As(err, &invalid):
		return models.StatusInvalid, true
	case errors.As(err, &protocol), errors.As(err, &exhausted):
		return models.StatusAPIError, true
	default:
		return "", false
	}
}

func toStringMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out, err := cast.ToStringMapE(m)
		return out, err == nil
	default:
		return nil, false
	}
}

// lookup finds key ignoring case, since viper lowercases keys of nested maps.
func lookup(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

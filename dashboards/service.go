package dashboards

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/senpro-it/nr-chart-refresh-updater/models"
	"github.com/senpro-it/nr-chart-refresh-updater/nerdgraph"
	"github.com/senpro-it/nr-chart-refresh-updater/tools"
)

const getDashboardQuery = `
{
  actor {
    entity(guid: $guid) {
      ... on DashboardEntity {
        description
        name
        pages {
          description
          guid
          name
          widgets {
            id
            layout {
              column
              height
              row
              width
            }
            linkedEntities {
              guid
            }
            rawConfiguration
            title
            visualization {
              id
            }
          }
        }
        permissions
        variables {
          defaultValues {
            value {
              string
            }
          }
          isMultiSelection
          items {
            title
            value
          }
          name
          nrqlQuery {
            accountIds
            query
          }
          options {
            excluded
            ignoreTimeRange
            showApplyAction
          }
          replacementStrategy
          title
          type
        }
      }
    }
  }
}`

const updateDashboardMutation = `
{
  dashboardUpdate(
    dashboard: $dashboard,
    guid: $guid
  ) {
    errors {
      description
      type
    }
  }
}`

// Executor is the subset of the NerdGraph client used by Service.
type Executor interface {
	Execute(
		ctx context.Context,
		region nerdgraph.Region,
		query string,
		variables []nerdgraph.Variable,
		mutation bool,
		cursorPath string,
	) ([]map[string]any, error)
}

type Service struct {
	client Executor
	logger *log.Logger
}

func NewService(client Executor, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		client: client,
		logger: logger.WithPrefix("dashboards"),
	}
}

// Fetch reads the dashboard entity for guid.
//
// A missing or non-object `actor.entity` means the response is not shaped
// like a dashboard query answer and yields a ProtocolError. A null or empty
// entity means the GUID does not name a dashboard and yields NotFoundError.
func (s *Service) Fetch(ctx context.Context, guid string, region nerdgraph.Region) (models.Dashboard, error) {
	pages, err := s.client.Execute(
		ctx,
		region,
		getDashboardQuery,
		[]nerdgraph.Variable{nerdgraph.Var("guid", "EntityGuid!", guid)},
		false,
		"",
	)
	if err != nil {
		return nil, err
	}

	if len(pages) != 1 {
		s.logger.Error("Unexpected number of results for dashboard", "guid", guid, "results", len(pages))
		return nil, &nerdgraph.ProtocolError{
			Message: fmt.Sprintf("unexpected number of results for dashboard %s: %d", guid, len(pages)),
		}
	}

	actor, found := tools.GetNested(pages[0], "actor")
	actorMap, isMap := actor.(map[string]any)
	value, present := actorMap["entity"]
	if !found || !isMap || !present {
		s.logger.Error("Missing entity in dashboard response", "guid", guid)
		return nil, &nerdgraph.ProtocolError{
			Message: fmt.Sprintf("missing actor.entity in response for dashboard %s", guid),
		}
	}
	if value == nil {
		s.logger.Error("Dashboard not found", "guid", guid)
		return nil, &NotFoundError{GUID: guid}
	}

	entity, ok := value.(map[string]any)
	if !ok {
		s.logger.Error("Invalid entity in dashboard response", "guid", guid, "entity", value)
		return nil, &nerdgraph.ProtocolError{
			Message: fmt.Sprintf("invalid actor.entity in response for dashboard %s", guid),
		}
	}
	if len(entity) == 0 {
		// The entity exists but is not a DashboardEntity.
		s.logger.Error("Entity is not a dashboard", "guid", guid)
		return nil, &NotFoundError{GUID: guid}
	}

	return models.Dashboard(entity), nil
}

// Update writes dashboard back as the full DashboardInput for guid.
func (s *Service) Update(ctx context.Context, guid string, dashboard models.Dashboard, region nerdgraph.Region) error {
	pages, err := s.client.Execute(
		ctx,
		region,
		updateDashboardMutation,
		[]nerdgraph.Variable{
			nerdgraph.Var("guid", "EntityGuid!", guid),
			nerdgraph.Var("dashboard", "DashboardInput!", dashboard),
		},
		true,
		"",
	)
	if err != nil {
		return err
	}

	if len(pages) != 1 {
		s.logger.Error("Unexpected number of results for dashboard update", "guid", guid, "results", len(pages))
		return &nerdgraph.ProtocolError{
			Message: fmt.Sprintf("unexpected number of results for dashboard update %s: %d", guid, len(pages)),
		}
	}

	value, found := tools.GetNested(pages[0], "dashboardUpdate.errors")
	if !found || value == nil {
		return nil
	}
	errs, ok := value.([]any)
	if !ok {
		s.logger.Error("Invalid dashboardUpdate.errors in response", "guid", guid, "errors", value)
		return &nerdgraph.ProtocolError{
			Message: fmt.Sprintf("invalid dashboardUpdate.errors in response for dashboard %s", guid),
		}
	}
	if len(errs) == 0 {
		return nil
	}

	descriptions := make([]string, 0, len(errs))
	for _, e := range errs {
		desc := fmt.Sprint(e)
		if entry, ok := e.(map[string]any); ok {
			desc = fmt.Sprint(entry["description"])
		}
		s.logger.Error("Failed to update dashboard", "guid", guid, "description", desc)
		descriptions = append(descriptions, desc)
	}

	return &nerdgraph.ProtocolError{
		Message: fmt.Sprintf("failed to update dashboard %s: %s", guid, strings.Join(descriptions, ",")),
	}
}

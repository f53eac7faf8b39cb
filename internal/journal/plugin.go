package journal

import (
	"context"

	"github.com/lewisedginton/brainoverflow/internal/app"
	"github.com/lewisedginton/brainoverflow/internal/bridge"
)

// ControllerName exposes the journal over the bridge.
const ControllerName = "Journal"

const defaultRecentLimit = 50

// RecentRequest asks for the newest entries.
type RecentRequest struct {
	Limit int32 `json:"limit"`
}

// Plugin installs the journal middleware, its writer and the Journal controller.
type Plugin struct {
	Journal *Journal
}

// Name implements app.Plugin.
func (p Plugin) Name() string { return "journal" }

// Initialize implements app.Plugin.
func (p Plugin) Initialize(s *app.Services) error {
	s.Host.Use(p.Journal.Middleware())
	s.AddHostedService(p.Journal)
	return s.AddController(bridge.ControllerFunc{
		ControllerName: ControllerName,
		ActionMap: map[string]bridge.ActionFunc{
			"Recent": bridge.Action(func(ctx context.Context, req RecentRequest) (any, error) {
				if req.Limit <= 0 || req.Limit > 1000 {
					req.Limit = defaultRecentLimit
				}
				return p.Journal.Recent(ctx, req.Limit)
			}),
		},
	})
}

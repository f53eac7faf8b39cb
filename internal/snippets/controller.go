package snippets

import (
	"context"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
)

// ControllerName is the bridge controller name used by the front-end.
const ControllerName = "Snippets"

// IDRequest addresses a single snippet.
type IDRequest struct {
	ID string `json:"id"`
}

// Controller exposes a Store over the bridge.
type Controller struct {
	store *Store
}

// NewController creates the Snippets controller.
func NewController(store *Store) *Controller {
	return &Controller{store: store}
}

// Name implements bridge.Controller.
func (c *Controller) Name() string { return ControllerName }

// Actions implements bridge.Controller.
func (c *Controller) Actions() map[string]bridge.ActionFunc {
	return map[string]bridge.ActionFunc{
		"Save": bridge.Action(func(ctx context.Context, req Snippet) (any, error) {
			return c.store.Save(ctx, req)
		}),
		"Search": bridge.Action(func(ctx context.Context, req SearchRequest) (any, error) {
			return c.store.Search(ctx, req.Text)
		}),
		"Get": bridge.Action(func(ctx context.Context, req IDRequest) (any, error) {
			return c.store.Get(ctx, req.ID)
		}),
		"Delete": bridge.Action(func(ctx context.Context, req IDRequest) (any, error) {
			return nil, c.store.Delete(ctx, req.ID)
		}),
		"List": bridge.NoArgs(func(ctx context.Context) (any, error) {
			return c.store.List(ctx)
		}),
	}
}

package snippets

import (
	"time"

	"github.com/lewisedginton/brainoverflow/internal/app"
	"github.com/lewisedginton/brainoverflow/internal/observer"
)

// Plugin registers the Snippets controller on the store root and, when
// ObserveInterval is positive, the store observer.
type Plugin struct {
	ObserveInterval time.Duration
}

// Name implements app.Plugin.
func (p Plugin) Name() string { return "snippets" }

// Initialize implements app.Plugin.
func (p Plugin) Initialize(s *app.Services) error {
	if err := s.AddController(NewController(NewStore(s.Storage.GetProvider("")))); err != nil {
		return err
	}
	if p.ObserveInterval > 0 {
		s.AddHostedService(observer.New(s.Storage, s.Events, p.ObserveInterval, s.Logger))
	}
	return nil
}

// Package app assembles the bridge host, its plugins and their hosted
// services into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/internal/events"
	"github.com/lewisedginton/brainoverflow/internal/storage_manager"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
	"github.com/lewisedginton/brainoverflow/pkg/utils"
)

// Plugin registers controllers and hosted services during Build.
type Plugin interface {
	Name() string
	Initialize(s *Services) error
}

// HostedService is a background task owned by the application. Start runs
// before any transport is served and a Start error aborts startup. Run
// blocks until ctx is cancelled.
type HostedService interface {
	Name() string
	Start(ctx context.Context) error
	Run(ctx context.Context) error
}

// Services is what plugins are given to register against.
type Services struct {
	Host    *bridge.Host
	Events  events.Publisher
	Storage *storage_manager.StorageManager
	Logger  logger.Logger

	hosted []HostedService
}

// AddController registers c with the bridge host.
func (s *Services) AddController(c bridge.Controller) error {
	return s.Host.Register(c)
}

// AddHostedService schedules h to be started with the application.
func (s *Services) AddHostedService(h HostedService) {
	s.hosted = append(s.hosted, h)
}

// Builder collects plugins and command table entries.
type Builder struct {
	services Services
	plugins  []Plugin
	commands map[string]bridge.ContextCommandFunc
	order    []string
}

// New starts a Builder. Host and Logger default to a fresh host and a
// no-op logger.
func New(services Services) *Builder {
	if services.Logger == nil {
		services.Logger = logger.NewNopLogger()
	}
	if services.Host == nil {
		services.Host = bridge.NewHost(bridge.WithLogger(services.Logger))
	}
	return &Builder{
		services: services,
		commands: make(map[string]bridge.ContextCommandFunc),
	}
}

// Plugin adds plugins, initialized in the order given.
func (b *Builder) Plugin(p ...Plugin) *Builder {
	b.plugins = append(b.plugins, p...)
	return b
}

// Command adds a command table entry.
func (b *Builder) Command(name string, fn bridge.CommandFunc) *Builder {
	return b.CommandContext(name, fn.WithContext())
}

// CommandContext adds a command table entry that receives the caller's context.
func (b *Builder) CommandContext(name string, fn bridge.ContextCommandFunc) *Builder {
	if _, ok := b.commands[name]; !ok {
		b.order = append(b.order, name)
	}
	b.commands[name] = fn
	return b
}

// InvokeHandler adds the dotnet_request command bound to the host.
func (b *Builder) InvokeHandler() *Builder {
	return b.CommandContext(bridge.CommandDotnetRequest, bridge.DotnetRequestContext(b.services.Host))
}

// Build initializes every plugin and freezes the command table. Nothing is
// started yet.
func (b *Builder) Build() (*App, error) {
	services := b.services
	services.hosted = nil

	for _, p := range b.plugins {
		if err := p.Initialize(&services); err != nil {
			return nil, fmt.Errorf("failed to initialize plugin %s: %w", p.Name(), err)
		}
		services.Logger.Info("Plugin initialized", logger.StringField("plugin", p.Name()))
	}

	table := bridge.NewCommandTable()
	for _, name := range b.order {
		if err := table.RegisterContext(name, b.commands[name]); err != nil {
			return nil, err
		}
	}

	return &App{
		services: services,
		commands: table,
		log:      services.Logger,
	}, nil
}

// App is a built application.
type App struct {
	services Services
	commands *bridge.CommandTable
	log      logger.Logger
}

// Commands returns the command table.
func (a *App) Commands() *bridge.CommandTable {
	return a.commands
}

// Host returns the bridge host.
func (a *App) Host() *bridge.Host {
	return a.services.Host
}

// HostedServices returns the registered hosted service names.
func (a *App) HostedServices() []string {
	names := make([]string, 0, len(a.services.hosted))
	for _, h := range a.services.hosted {
		names = append(names, h.Name())
	}
	return names
}

// Start runs every hosted service's Start in registration order, then
// launches their Run loops. If any Start fails no Run loop is launched.
// Run failures are delivered on the returned channel, which is closed once
// every service has stopped.
func (a *App) Start(ctx context.Context) (chan error, error) {
	for _, h := range a.services.hosted {
		if err := h.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", h.Name(), err)
		}
		a.log.Debug("Hosted service started", logger.StringField("service", h.Name()))
	}

	chans := make([]chan error, 0, len(a.services.hosted))
	for _, h := range a.services.hosted {
		chans = append(chans, a.run(ctx, h))
	}
	return utils.MergeErrorChans(chans...), nil
}

// Exec starts the hosted services, runs fn, then stops them and waits for
// every Run loop to return, so work fn queued on a service is finished
// before Exec does. fn's error takes precedence over service errors.
func (a *App) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs, err := a.Start(ctx)
	if err != nil {
		return err
	}

	fnErr := fn(ctx)
	cancel()

	var result error
	for err := range errs {
		result = multierror.Append(result, err)
	}
	if fnErr != nil {
		return fnErr
	}
	return result
}

func (a *App) run(ctx context.Context, h HostedService) chan error {
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		err := h.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("Hosted service stopped", logger.StringField("service", h.Name()), logger.ErrorField(err))
			errChan <- fmt.Errorf("%s: %w", h.Name(), err)
		}
	}()
	return errChan
}

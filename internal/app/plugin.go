package app

import "context"

// PluginFunc adapts a function to Plugin.
type PluginFunc struct {
	PluginName string
	Init       func(s *Services) error
}

// Name implements Plugin.
func (p PluginFunc) Name() string { return p.PluginName }

// Initialize implements Plugin.
func (p PluginFunc) Initialize(s *Services) error { return p.Init(s) }

// ServiceFunc adapts a run loop without setup to HostedService.
type ServiceFunc struct {
	ServiceName string
	RunFunc     func(ctx context.Context) error
}

// Name implements HostedService.
func (s ServiceFunc) Name() string { return s.ServiceName }

// Start implements HostedService.
func (s ServiceFunc) Start(context.Context) error { return nil }

// Run implements HostedService.
func (s ServiceFunc) Run(ctx context.Context) error { return s.RunFunc(ctx) }

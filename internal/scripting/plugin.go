package scripting

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/lewisedginton/brainoverflow/internal/app"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// LoadDir loads every *.lua file directly in dir, ordered by name.
func LoadDir(dir string, timeout time.Duration, log logger.Logger) ([]*ScriptController, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	sort.Strings(paths)

	controllers := make([]*ScriptController, 0, len(paths))
	for _, path := range paths {
		c, err := Load(path, timeout, log)
		if err != nil {
			return nil, err
		}
		controllers = append(controllers, c)
	}
	return controllers, nil
}

// Plugin registers one controller per script in Dir.
type Plugin struct {
	Dir     string
	Timeout time.Duration
}

// Name implements app.Plugin.
func (p Plugin) Name() string { return "scripting" }

// Initialize implements app.Plugin.
func (p Plugin) Initialize(s *app.Services) error {
	controllers, err := LoadDir(p.Dir, p.Timeout, s.Logger)
	if err != nil {
		return err
	}
	for _, c := range controllers {
		if err := s.AddController(c); err != nil {
			return err
		}
		s.Logger.Info("Loaded script controller",
			logger.ControllerField(c.Name()),
			logger.IntField("actions", len(c.ActionNames())))
	}
	return nil
}

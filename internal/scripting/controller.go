// Package scripting registers Lua scripts as bridge controllers. A script
// returns a table of functions; each function is an action that receives
// the request data and returns the response data, or nil and an error
// message.
package scripting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// DefaultTimeout bounds a single action call.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when an action exceeds its time limit.
var ErrTimeout = errors.New("script execution timed out")

// ScriptController is a controller backed by one Lua file.
type ScriptController struct {
	name    string
	proto   *lua.FunctionProto
	actions []string
	timeout time.Duration
	log     logger.Logger
}

// Load compiles the script at path and discovers its actions. The
// controller is named after the file without its extension.
func Load(path string, timeout time.Duration, log logger.Logger) (*ScriptController, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	file := filepath.Base(path)
	chunk, err := parse.Parse(strings.NewReader(string(src)), file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	proto, err := lua.Compile(chunk, file)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", file, err)
	}

	name := strings.TrimSuffix(file, filepath.Ext(file))
	c := &ScriptController{
		name:    name,
		proto:   proto,
		timeout: timeout,
		log:     log.WithFields(logger.StringField("script", file)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	L, module, err := c.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	module.ForEach(func(key, value lua.LValue) {
		if k, ok := key.(lua.LString); ok && value.Type() == lua.LTFunction {
			c.actions = append(c.actions, string(k))
		}
	})
	if len(c.actions) == 0 {
		return nil, fmt.Errorf("script %s exports no functions", file)
	}
	sort.Strings(c.actions)

	return c, nil
}

// Name implements bridge.Controller.
func (c *ScriptController) Name() string { return c.name }

// ActionNames lists the exported functions.
func (c *ScriptController) ActionNames() []string {
	return c.actions
}

// Actions implements bridge.Controller.
func (c *ScriptController) Actions() map[string]bridge.ActionFunc {
	actions := make(map[string]bridge.ActionFunc, len(c.actions))
	for _, name := range c.actions {
		name := name
		actions[name] = func(ctx context.Context, data json.RawMessage) (any, error) {
			return c.call(ctx, name, data)
		}
	}
	return actions
}

// instantiate runs the script in a fresh sandbox and returns its module table.
func (c *ScriptController) instantiate(ctx context.Context) (*lua.LState, *lua.LTable, error) {
	L := newSandbox(c.log)
	L.SetContext(ctx)

	L.Push(L.NewFunctionFromProto(c.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		L.Close()
		return nil, nil, fmt.Errorf("failed to run %s: %w", c.name, err)
	}

	module, ok := L.Get(-1).(*lua.LTable)
	L.Pop(1)
	if !ok {
		L.Close()
		return nil, nil, fmt.Errorf("script %s must return a table of functions", c.name)
	}
	return L, module, nil
}

// call runs one action in its own state so calls never share globals.
func (c *ScriptController) call(ctx context.Context, action string, data json.RawMessage) (any, error) {
	var input any
	if err := bridge.DecodeData(data, &input); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.invoke(callCtx, action, input)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s.%s after %s", ErrTimeout, c.name, action, c.timeout)
	}
	return result, err
}

func (c *ScriptController) invoke(ctx context.Context, action string, input any) (any, error) {
	L, module, err := c.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	fn, ok := L.GetField(module, action).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", bridge.ErrUnknownAction, c.name, action)
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, goToLua(L, input)); err != nil {
		return nil, fmt.Errorf("%s.%s failed: %w", c.name, action, err)
	}

	ret, msg := L.Get(-2), L.Get(-1)
	L.Pop(2)

	if ret == lua.LNil && msg != lua.LNil {
		return nil, errors.New(lua.LVAsString(msg))
	}
	out, err := luaToGo(ret)
	if err != nil {
		return nil, fmt.Errorf("%s.%s returned an unconvertible value: %w", c.name, action, err)
	}
	return out, nil
}

package scripting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// newSandbox returns a state with only the safe libraries opened. print is
// routed to log.
func newSandbox(log logger.Logger) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	lua.OpenString(L)
	lua.OpenTable(L)
	lua.OpenMath(L)

	registerSafeOS(L)
	registerJSONModule(L)
	registerPrint(L, log)
	return L
}

// registerSafeOS exposes the clock functions of os and nothing else.
func registerSafeOS(L *lua.LState) {
	osMod := L.NewTable()

	L.SetField(osMod, "time", L.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	L.SetField(osMod, "date", L.NewFunction(func(l *lua.LState) int {
		format := l.OptString(1, "%c")
		t := time.Now()
		if l.GetTop() >= 2 {
			t = time.Unix(int64(l.CheckNumber(2)), 0)
		}
		l.Push(lua.LString(formatTime(format, t)))
		return 1
	}))
	L.SetField(osMod, "difftime", L.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(l.CheckNumber(1) - l.CheckNumber(2)))
		return 1
	}))
	L.SetField(osMod, "clock", L.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(float64(time.Now().UnixNano()) / 1e9))
		return 1
	}))

	L.SetGlobal("os", osMod)
}

var strftime = strings.NewReplacer(
	"%Y", "2006",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%%", "%",
)

// formatTime supports the numeric strftime directives; anything else is RFC3339.
func formatTime(format string, t time.Time) string {
	if format == "%c" || format == "*t" {
		return t.Format(time.RFC3339)
	}
	layout := strftime.Replace(format)
	if strings.Contains(layout, "%") {
		return t.Format(time.RFC3339)
	}
	return t.Format(layout)
}

func registerPrint(L *lua.LState, log logger.Logger) {
	L.SetGlobal("print", L.NewFunction(func(l *lua.LState) int {
		parts := make([]string, 0, l.GetTop())
		for i := 1; i <= l.GetTop(); i++ {
			parts = append(parts, l.ToStringMeta(l.Get(i)).String())
		}
		log.Info("Script output", logger.StringField("output", strings.Join(parts, "\t")))
		return 0
	}))
}

func registerJSONModule(L *lua.LState) {
	jsonMod := L.NewTable()

	L.SetField(jsonMod, "encode", L.NewFunction(func(l *lua.LState) int {
		value, err := luaToGo(l.Get(1))
		if err != nil {
			l.Push(lua.LNil)
			l.Push(lua.LString(err.Error()))
			return 2
		}
		data, err := json.Marshal(value)
		if err != nil {
			l.Push(lua.LNil)
			l.Push(lua.LString(err.Error()))
			return 2
		}
		l.Push(lua.LString(data))
		return 1
	}))
	L.SetField(jsonMod, "decode", L.NewFunction(func(l *lua.LState) int {
		var value any
		if err := json.Unmarshal([]byte(l.CheckString(1)), &value); err != nil {
			l.Push(lua.LNil)
			l.Push(lua.LString(err.Error()))
			return 2
		}
		l.Push(goToLua(l, value))
		return 1
	}))

	L.SetGlobal("json", jsonMod)
}

// goToLua converts decoded JSON into Lua values.
func goToLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		tbl := L.CreateTable(len(v), 0)
		for i, item := range v {
			tbl.RawSetInt(i+1, goToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(v))
		for key, item := range v {
			tbl.RawSetString(key, goToLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// maxTableDepth bounds nesting when converting Lua tables to Go.
const maxTableDepth = 64

// ErrCyclicTable is returned when a table contains itself.
var ErrCyclicTable = errors.New("cyclic table")

// luaToGo converts a Lua value into something encoding/json can marshal.
// Tables with keys 1..n become slices, other tables become objects.
func luaToGo(value lua.LValue) (any, error) {
	return convertValue(value, make(map[*lua.LTable]struct{}), 0)
}

func convertValue(value lua.LValue, visiting map[*lua.LTable]struct{}, depth int) (any, error) {
	switch v := value.(type) {
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		return float64(v), nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		return convertTable(v, visiting, depth)
	default:
		return nil, nil
	}
}

// convertTable tracks the tables on the current path only, so a table
// referenced twice from different branches is still accepted.
func convertTable(tbl *lua.LTable, visiting map[*lua.LTable]struct{}, depth int) (any, error) {
	if _, ok := visiting[tbl]; ok {
		return nil, ErrCyclicTable
	}
	if depth >= maxTableDepth {
		return nil, fmt.Errorf("table nested deeper than %d levels", maxTableDepth)
	}
	visiting[tbl] = struct{}{}
	defer delete(visiting, tbl)

	n := tbl.Len()
	count := 0
	tbl.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			item, err := convertValue(tbl.RawGetInt(i), visiting, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}

	out := make(map[string]any, count)
	var firstErr error
	tbl.ForEach(func(key, value lua.LValue) {
		if firstErr != nil {
			return
		}
		item, err := convertValue(value, visiting, depth+1)
		if err != nil {
			firstErr = err
			return
		}
		out[lua.LVAsString(key)] = item
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

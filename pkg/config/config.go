// Package config loads struct configuration from an optional YAML file
// overlaid with environment variables. Fields are described with struct
// tags:
//
//	env:"NAME"        environment variable to read
//	default:"value"   value used when the field is still zero
//	required:"true"   error when the field is zero and has no default
//
// Nested structs are walked recursively.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator is implemented by config structs with custom validation; it is
// run after the file, environment and defaults have been applied.
type Validator interface {
	Validate() error
}

// GetConfigFromEnvVars loads configuration from environment variables only.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()

	fromEnv := make(map[string]bool)
	if err := applyEnv(val, fromEnv); err != nil {
		return err
	}

	if err := applyDefaults(val, fromEnv); err != nil {
		var zero T
		*dest = zero
		return err
	}

	return validate(dest)
}

// GetConfig loads configuration from a YAML file, then overlays environment
// variables. ${VAR} references inside the file are expanded before parsing.
// An empty filepath reads the environment only. With allowFileErrors set, an
// unreadable or invalid file falls back to the environment.
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(filepath) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), dest); err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return GetConfigFromEnvVars(dest)
}

// validate runs Validate on dest; the pointer method set covers both
// value and pointer receivers.
func validate[T any](dest *T) error {
	if v, ok := any(dest).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// fieldKey identifies a field by owning struct type and name so that equally
// named fields in different nested structs do not collide.
func fieldKey(owner reflect.Type, field reflect.StructField) string {
	return owner.String() + "." + field.Name
}

func applyEnv(val reflect.Value, fromEnv map[string]bool) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		meta := typ.Field(i)

		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, fromEnv); err != nil {
				return err
			}
			continue
		}

		name := meta.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}

		if err := setFromString(field, raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
		fromEnv[fieldKey(typ, meta)] = true
	}
	return nil
}

func applyDefaults(val reflect.Value, fromEnv map[string]bool) error {
	var result error
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		meta := typ.Field(i)

		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := applyDefaults(field, fromEnv); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if !field.IsZero() || fromEnv[fieldKey(typ, meta)] {
			continue
		}

		def, hasDefault := meta.Tag.Lookup("default")
		if hasDefault && def != "" {
			if err := setFromString(field, def); err != nil {
				result = multierror.Append(result, fmt.Errorf("default for %s: %w", meta.Name, err))
			}
			continue
		}

		if isTrue(meta.Tag.Get("required")) {
			result = multierror.Append(result, fmt.Errorf("required field env:%s / yaml:%s is missing",
				meta.Tag.Get("env"), meta.Tag.Get("yaml")))
		}
	}
	return result
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1"
}

// setFromString assigns raw to field according to the field's type.
func setFromString(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %s to int: %w", raw, err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %s to uint: %w", raw, err)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %s to float: %w", raw, err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to bool: %w", raw, err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

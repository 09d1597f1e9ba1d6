// Package envconf fills configuration structs from environment variables
// described by `env` struct tags.
//
//	type Config struct {
//		Token       Secret        `env:"DRIVE_REFRESH_TOKEN,required"`
//		Concurrency int           `env:"DRIVE_UPLOAD_CONCURRENCY"`
//		Interval    time.Duration `env:"DRIVE_JOB_POLL_INTERVAL"`
//		Mode        string        `env:"DRIVE_MODE,opt[fast,safe]"`
//	}
//
// Supported constraints: required, file, dir and opt[...].
package envconf

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/pathutil"
)

// ErrNotStructPtr indicates a type is not a pointer to a struct.
var ErrNotStructPtr = errors.New("must be a pointer to a struct")

// ErrRequired indicates a required variable is not present.
var ErrRequired = errors.New("required variable is not present")

// ErrNotInValueOptions indicates the value is not in the allowed options.
var ErrNotInValueOptions = errors.New("value is not in value options")

// EnvGetter ...
type EnvGetter interface {
	Get(key string) string
}

// Secret hides its value when the config is printed.
type Secret string

// String ...
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}

const (
	constraintRequired = "required"
	constraintFile     = "file"
	constraintDir      = "dir"
	sliceSeparator     = "|"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Parse populates a struct with the retrieved values from environment variables
// described by struct tags and applies the defined validations.
func Parse(conf interface{}) error {
	return parse(conf, env.NewRepository())
}

func parse(conf interface{}, envGetter EnvGetter) error {
	c := reflect.ValueOf(conf)
	if c.Kind() != reflect.Ptr {
		return ErrNotStructPtr
	}
	c = c.Elem()
	if c.Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	t := c.Type()

	pathChecker := pathutil.NewPathChecker()

	var errs []string
	for i := 0; i < t.NumField(); i++ {
		tag, ok := t.Field(i).Tag.Lookup("env")
		if !ok {
			continue
		}
		key, constraint := parseTag(tag)
		value := envGetter.Get(key)

		if err := validate(value, constraint, pathChecker); err != nil {
			errs = append(errs, fmt.Sprintf("- %s: %s", key, err))
			continue
		}
		if err := setField(c.Field(i), value); err != nil {
			errs = append(errs, fmt.Sprintf("- %s: %s", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to parse config:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func parseTag(tag string) (string, string) {
	if idx := strings.Index(tag, ","); idx != -1 {
		return tag[:idx], tag[idx+1:]
	}
	return tag, ""
}

func validate(value, constraint string, pathChecker pathutil.PathChecker) error {
	switch constraint {
	case "":
		return nil
	case constraintRequired:
		if value == "" {
			return ErrRequired
		}
	case constraintFile:
		exists, err := pathChecker.IsPathExists(value)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("file does not exist: %s", value)
		}
	case constraintDir:
		exists, err := pathChecker.IsDirExists(value)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("dir does not exist: %s", value)
		}
	default:
		if !strings.HasPrefix(constraint, "opt[") || !strings.HasSuffix(constraint, "]") {
			return fmt.Errorf("invalid constraint (%s)", constraint)
		}
		for _, option := range valueOptions(constraint) {
			if option == value {
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrNotInValueOptions, value)
	}
	return nil
}

// valueOptions splits opt[a,b,'c,d'] into its options, single quotes keep commas together.
func valueOptions(constraint string) []string {
	list := strings.TrimSuffix(strings.TrimPrefix(constraint, "opt["), "]")

	var options []string
	var current strings.Builder
	quoted := false
	for _, r := range list {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ',' && !quoted:
			options = append(options, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(options, current.String())
}

func setField(field reflect.Value, value string) error {
	if value == "" {
		return nil
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("can't convert to duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.Ptr:
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("can't convert to bool: %w", err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("can't convert to int: %w", err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("can't convert to uint: %w", err)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("can't convert to float: %w", err)
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		field.Set(reflect.ValueOf(strings.Split(value, sliceSeparator)))
	default:
		return fmt.Errorf("type is not supported (%s)", field.Kind())
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(value)
}

package envconf

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bitrise-io/go-utils/colorstring"
)

const unsetValue = "<unset>"

// Print the name of the struct with Title case in blue color followed by a newline,
// then print all fields formatted as '- field name: field value` separated by newline.
func Print(config interface{}) {
	fmt.Print(toString(config))
}

func toString(config interface{}) string {
	v := reflect.ValueOf(config)
	t := reflect.TypeOf(config)
	if t.Kind() == reflect.Ptr {
		v = v.Elem()
		t = t.Elem()
	}

	name := t.Name()
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	str := colorstring.Bluef("%s:\n", name)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		key := field.Name
		if tag, ok := field.Tag.Lookup("env"); ok {
			key, _ = parseTag(tag)
		}

		value := valueString(v.Field(i))
		if value == "" || v.Field(i).IsZero() {
			value = unsetValue
		} else if _, secret := v.Field(i).Interface().(Secret); secret {
			value = Secret(value).String()
		}

		str += fmt.Sprintf("- %s: %s\n", key, value)
	}
	return str
}

// valueString returns the value of a field, nil pointers are printed as empty.
func valueString(v reflect.Value) string {
	if v.Kind() != reflect.Ptr {
		return fmt.Sprintf("%v", v.Interface())
	}
	if v.IsNil() {
		return ""
	}
	return fmt.Sprintf("%v", v.Elem().Interface())
}

package config

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// SplitQuotedFields is like strings.Fields but ignores spaces inside areas
// surrounded by the specified quote character. Inside quotes a backslash
// escapes the next character, so a literal quote is written \'.
func SplitQuotedFields(in string, quote rune) []string {
	type stateEnum int
	const (
		inSpace stateEnum = iota
		inField
		inQuote
		inQuoteEscaped
	)
	state := inSpace
	r := []string{}
	var buf bytes.Buffer

	for _, ch := range in {
		switch state {
		case inSpace:
			if ch == quote {
				state = inQuote
			} else if !unicode.IsSpace(ch) {
				buf.WriteRune(ch)
				state = inField
			}

		case inField:
			if ch == quote {
				state = inQuote
			} else if unicode.IsSpace(ch) {
				r = append(r, buf.String())
				buf.Reset()
			} else {
				buf.WriteRune(ch)
			}

		case inQuote:
			if ch == quote {
				state = inField
			} else if ch == '\\' {
				state = inQuoteEscaped
			} else {
				buf.WriteRune(ch)
			}

		case inQuoteEscaped:
			buf.WriteRune(ch)
			state = inQuote
		}
	}

	if buf.Len() != 0 {
		r = append(r, buf.String())
	}

	return r
}

// ConfigurationIterator walks the fields of a configuration struct that
// carry a name under the given struct tag.
type ConfigurationIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	tag      string
	i        int
}

// IterateConfiguration returns an iterator over the fields of the struct
// pointed to by conf, named by their tag.
func IterateConfiguration(conf interface{}, tag string) *ConfigurationIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	return &ConfigurationIterator{cfgValue: cfgValue, cfgType: cfgValue.Type(), tag: tag, i: -1}
}

func (it *ConfigurationIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

// Field returns the name and value of the current field. The name is the
// empty string for fields without the tag.
func (it *ConfigurationIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get(it.tag)
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

// ConfigureFindFieldByName returns the field of conf called name, or the
// zero Value.
func ConfigureFindFieldByName(conf interface{}, name, tag string) reflect.Value {
	it := IterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			return field
		}
	}
	return reflect.ValueOf(nil)
}

// ConfigureList writes every named field of conf to w, one per line.
func ConfigureList(w io.Writer, conf interface{}, tag string) {
	it := IterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}
		writeField(w, field, fieldName)
	}
}

// ConfigureListByName returns the line ConfigureList would write for the
// field called name, or the empty string.
func ConfigureListByName(conf interface{}, name, tag string) string {
	if name == "" {
		return ""
	}
	it := IterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			var buf bytes.Buffer
			writeField(&buf, field, fieldName)
			return buf.String()
		}
	}
	return ""
}

func writeField(w io.Writer, field reflect.Value, fieldName string) {
	switch {
	case field.Kind() == reflect.String && field.Len() == 0:
		fmt.Fprintf(w, "%s\t<not defined>\n", fieldName)
	case field.Kind() == reflect.String:
		fmt.Fprintf(w, "%s\t%q\n", fieldName, field.String())
	default:
		fmt.Fprintf(w, "%s\t%v\n", fieldName, field)
	}
}

// ConfigureSetSimple parses rest as the value of a field of kind int, bool
// or string and stores it.
func ConfigureSetSimple(rest string, cfgname string, field reflect.Value) error {
	simpleArg := func(typ reflect.Type) (reflect.Value, error) {
		switch typ.Kind() {
		case reflect.Int:
			n, err := strconv.Atoi(rest)
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number", cfgname)
			}
			if n < 0 {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number greater than zero", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Bool:
			if rest != "true" && rest != "false" {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be true or false", cfgname)
			}
			v := rest == "true"
			return reflect.ValueOf(&v), nil
		case reflect.String:
			v := rest
			if unq, err := strconv.Unquote(rest); err == nil {
				v = unq
			}
			return reflect.ValueOf(&v), nil
		default:
			return reflect.ValueOf(nil), fmt.Errorf("unsupported type for configuration key %q", cfgname)
		}
	}

	val, err := simpleArg(field.Type())
	if err != nil {
		return err
	}
	field.Set(val.Elem())
	return nil
}

package config

import (
	"fmt"
	"strings"
)

// Error is a path-annotated configuration error. As it unwinds out of
// nested descend calls, each enclosing key is appended to context so the
// final message reads as a dotted path from the document root, matching
// original_source/src/config.rs's ConfigError/annotate behavior.
type Error struct {
	message string
	context []string
}

func newError(format string, args ...any) *Error {
	return &Error{message: fmt.Sprintf(format, args...)}
}

func missingKeyError(key string) *Error {
	return &Error{message: fmt.Sprintf("Missing config key `%s`", key)}
}

func missingValueError() *Error {
	return &Error{message: "Missing config value"}
}

func typeMismatchError(got any, want string) *Error {
	return newError("Expected %s, got %s", want, describeType(got))
}

func describeType(v any) string {
	switch v.(type) {
	case map[string]any:
		return "Object"
	case []any:
		return "Array"
	case string:
		return "String"
	case bool:
		return "Boolean"
	case nil:
		return "Null"
	case int, int64, float64:
		return "Integer"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (e *Error) Error() string {
	if len(e.context) == 0 {
		return e.message
	}
	path := make([]string, len(e.context))
	for i, k := range e.context {
		path[len(path)-1-i] = k
	}
	return fmt.Sprintf("%s in config: `%s`", e.message, strings.Join(path, "."))
}

// annotate records the enclosing key an error surfaced from, in encounter
// order innermost-first (context[0] is the deepest key).
func annotate(err error, key string) error {
	if err == nil {
		return nil
	}
	ce, ok := err.(*Error)
	if !ok {
		ce = &Error{message: err.Error()}
	}
	ce.context = append(ce.context, key)
	return ce
}

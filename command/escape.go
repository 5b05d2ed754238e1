package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cmdbridge/cmdbridge/bridge"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// filenameSpecial lists the characters the host treats specially in file
// name arguments.
const filenameSpecial = " \t\n*?[{`$\\%#'\"|!<"

// EscapeChars backslash-escapes every occurrence of a character in chars.
func EscapeChars(s, chars string) string {
	if !strings.ContainsAny(s, chars) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if strings.ContainsRune(chars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeFilename escapes s for use as a file name argument. A leading '+'
// or '>' and a lone '-' are escaped as well, so they are not read as options.
func EscapeFilename(s string) string {
	if s == "-" {
		return `\-`
	}
	out := EscapeChars(s, filenameSpecial)
	if strings.HasPrefix(out, "+") || strings.HasPrefix(out, ">") {
		out = `\` + out
	}
	return out
}

// SingleQuote wraps s in single quotes. There is no way to escape a single
// quote inside this form, so a value containing one is rejected.
func SingleQuote(s string) (string, error) {
	if strings.ContainsRune(s, '\'') {
		return "", bridgeerrors.NewValueError(s, "single-quoted value cannot contain a single quote")
	}
	return "'" + s + "'", nil
}

// DoubleQuote wraps s in double quotes, backslash-escaping backslashes and
// double quotes.
func DoubleQuote(s string) string {
	return `"` + EscapeChars(s, `\"`) + `"`
}

// ToString converts an argument to its command-line text. Strings,
// fmt.Stringers, numbers and booleans convert; anything else, callables
// included, is a value error.
func ToString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case bridge.Callable:
		return "", bridgeerrors.NewValueError(v, "callable given where a string is required")
	case fmt.Stringer:
		return val.String(), nil
	case nil:
		return "", bridgeerrors.NewValueError(nil, "nil given where a string is required")
	default:
		return "", bridgeerrors.NewValueError(v, "%T given where a string is required", v)
	}
}

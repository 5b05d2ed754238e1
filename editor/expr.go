package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cmdbridge/cmdbridge/dispatch"
)

// exprParser evaluates the expression language of echo and call: strings,
// numbers, lists, bare words, function calls and ".." concatenation.
type exprParser struct {
	e   *Editor
	ctx context.Context
	src string
	pos int
}

// evalList evaluates whitespace-separated expressions.
func (e *Editor) evalList(ctx context.Context, src string) ([]any, error) {
	p := &exprParser{e: e, ctx: ctx, src: src}
	var values []any
	for {
		p.skipSpace()
		if p.eof() {
			return values, nil
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
}

// evalExpr evaluates exactly one expression.
func (e *Editor) evalExpr(ctx context.Context, src string) (any, error) {
	p := &exprParser{e: e, ctx: ctx, src: src}
	p.skipSpace()
	if p.eof() {
		return nil, execError(src, "E15", "invalid expression: %q", src)
	}
	v, err := p.expr()
	if err != nil {
		return nil, err
	}
	return v, p.end()
}

// evalCall evaluates a single function call.
func (e *Editor) evalCall(ctx context.Context, src string) (any, error) {
	p := &exprParser{e: e, ctx: ctx, src: src}
	p.skipSpace()
	name := p.ident()
	if name == "" || p.peek() != '(' {
		return nil, execError(src, "E129", "function name required")
	}
	v, err := p.call(name)
	if err != nil {
		return nil, err
	}
	return v, p.end()
}

func (p *exprParser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *exprParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) end() error {
	p.skipSpace()
	if !p.eof() {
		return execError(p.src, "E488", "trailing characters: %s", p.src[p.pos:])
	}
	return nil
}

func (p *exprParser) invalid() error {
	return execError(p.src, "E15", "invalid expression: %q", p.src[p.pos:])
}

func (p *exprParser) expr() (any, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		p.skipSpace()
		if !strings.HasPrefix(p.src[p.pos:], "..") {
			p.pos = save
			return left, nil
		}
		p.pos += 2
		p.skipSpace()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = formatValue(left) + formatValue(right)
	}
}

func (p *exprParser) term() (any, error) {
	c := p.peek()
	switch {
	case c == '"':
		return p.doubleQuoted()
	case c == '\'':
		return p.singleQuoted()
	case isDigit(c) || (c == '-' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1])):
		return p.number()
	case c == '(':
		p.pos++
		p.skipSpace()
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, execError(p.src, "E110", "missing ')'")
		}
		p.pos++
		return v, nil
	case c == '[':
		return p.list()
	case isIdentStart(c):
		name := p.ident()
		if p.peek() == '(' {
			return p.call(name)
		}
		switch name {
		case "v:true":
			return true, nil
		case "v:false":
			return false, nil
		case "v:null":
			return nil, nil
		}
		return name, nil
	default:
		return nil, p.invalid()
	}
}

func (p *exprParser) doubleQuoted() (any, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.eof() {
				break
			}
			esc := p.src[p.pos]
			p.pos++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'e':
				b.WriteByte(0x1b)
			default:
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
		}
	}
	return nil, execError(p.src, "E114", "missing double quote: %s", p.src[start:])
}

func (p *exprParser) singleQuoted() (any, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		if c != '\'' {
			b.WriteByte(c)
			continue
		}
		if p.peek() == '\'' {
			b.WriteByte('\'')
			p.pos++
			continue
		}
		return b.String(), nil
	}
	return nil, execError(p.src, "E115", "missing single quote: %s", p.src[start:])
}

func (p *exprParser) number() (any, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for isDigit(p.peek()) {
		p.pos++
	}
	isFloat := false
	if p.peek() == '.' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1]) {
		isFloat = true
		p.pos++
		for isDigit(p.peek()) {
			p.pos++
		}
	}
	text := p.src[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, execError(p.src, "E15", "invalid number: %s", text)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, execError(p.src, "E15", "invalid number: %s", text)
	}
	return n, nil
}

func (p *exprParser) list() (any, error) {
	p.pos++
	items := []any{}
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			return items, nil
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
		default:
			return nil, execError(p.src, "E696", "missing comma in list: %s", p.src[p.pos:])
		}
	}
}

func (p *exprParser) ident() string {
	start := p.pos
	if !isIdentStart(p.peek()) {
		return ""
	}
	for !p.eof() && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *exprParser) call(name string) (any, error) {
	p.pos++ // '('
	var args []any
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			break
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
		default:
			return nil, execError(p.src, "E116", "invalid arguments for function %s", name)
		}
	}
	return p.e.callFunction(p.ctx, name, args)
}

// callFunction invokes a function of the dispatch table.
func (e *Editor) callFunction(ctx context.Context, name string, args []any) (any, error) {
	v, err := e.table.Invoke(ctx, name, args)
	if err != nil {
		var nf *dispatch.NotFoundError
		if errors.As(err, &nf) {
			return nil, execError("call "+name+"()", "E117", "unknown function: %s", name)
		}
		return nil, err
	}
	return v, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == ':' || c == '#'
}

// formatValue renders a value the way echo prints it.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "v:null"
	case bool:
		if val {
			return "v:true"
		}
		return "v:false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = quoteValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quoteValue(k) + ": " + quoteValue(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// quoteValue renders a value nested in a list or dictionary.
func quoteValue(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return formatValue(v)
}

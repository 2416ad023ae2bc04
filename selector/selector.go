package selector

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var ErrUnknownKind = errors.New("unknown selector kind")

// Selector matches lookup keys against a registered pattern.
type Selector interface {
	// Object returns the value the selector was built from
	Object() any
	Matches(key any) bool
}

// HeaderResolver is implemented by selectors that can extract values from a
// matching key, e.g. regex capture groups.
type HeaderResolver interface {
	Headers(key any) map[string]string
}

// ------------------------------------- match all -------------------------------------

type matchAll struct{}

var all = matchAll{}

// MatchAll returns a selector that matches every key, including nil.
func MatchAll() Selector {
	return all
}

func (matchAll) Object() any      { return nil }
func (matchAll) Matches(any) bool { return true }
func (matchAll) String() string   { return "all()" }
func (matchAll) isMatchAll() bool { return true }

// IsMatchAll reports whether s is the match-all selector.
func IsMatchAll(s Selector) bool {
	m, ok := s.(interface{ isMatchAll() bool })
	return ok && m.isMatchAll()
}

// ------------------------------------- object -------------------------------------

type object struct {
	value    any
	hashable bool
}

// Object returns a selector matching keys equal to v.
func Object(v any) Selector {
	return object{
		value:    v,
		hashable: Hashable(v),
	}
}

func (o object) Object() any { return o.value }

func (o object) Matches(key any) bool {
	if o.hashable && Hashable(key) {
		return o.value == key
	}
	return reflect.DeepEqual(o.value, key)
}

func (o object) String() string { return fmt.Sprintf("$(%v)", o.value) }

// ------------------------------------- regex -------------------------------------

type regex struct {
	pattern string
	re      *regexp.Regexp
}

// Regex returns a selector matching string keys against pattern. The whole
// key must match.
func Regex(pattern string) (Selector, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid regex selector %q: %w", pattern, err)
	}
	return regex{pattern: pattern, re: re}, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern string) Selector {
	s, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return s
}

func (r regex) Object() any { return r.pattern }

func (r regex) Matches(key any) bool {
	s, ok := keyString(key)
	return ok && r.re.MatchString(s)
}

// Headers returns capture groups as group1..groupN plus any named groups.
func (r regex) Headers(key any) map[string]string {
	s, ok := keyString(key)
	if !ok {
		return nil
	}
	m := r.re.FindStringSubmatch(s)
	if len(m) < 2 {
		return nil
	}

	headers := make(map[string]string, len(m)-1)
	names := r.re.SubexpNames()
	for i := 1; i < len(m); i++ {
		headers["group"+strconv.Itoa(i)] = m[i]
		if names[i] != "" {
			headers[names[i]] = m[i]
		}
	}
	return headers
}

func (r regex) String() string { return fmt.Sprintf("R(%s)", r.pattern) }

// ------------------------------------- type -------------------------------------

type typeSel struct {
	typ reflect.Type
}

// Type returns a selector matching keys whose dynamic type is assignable to
// the type of sample. Pass a nil pointer to an interface, e.g. (*error)(nil),
// to select on an interface type.
func Type(sample any) Selector {
	typ := reflect.TypeOf(sample)
	if typ != nil && typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Interface {
		typ = typ.Elem()
	}
	return typeSel{typ: typ}
}

func (t typeSel) Object() any { return t.typ }

func (t typeSel) Matches(key any) bool {
	if key == nil || t.typ == nil {
		return false
	}
	return reflect.TypeOf(key).AssignableTo(t.typ)
}

func (t typeSel) String() string { return fmt.Sprintf("T(%v)", t.typ) }

// ------------------------------------- predicate -------------------------------------

type predicate struct {
	fn func(any) bool
}

// Predicate returns a selector backed by an arbitrary function.
func Predicate(fn func(key any) bool) Selector {
	return predicate{fn: fn}
}

func (p predicate) Object() any { return p.fn }

func (p predicate) Matches(key any) bool {
	return p.fn != nil && p.fn(key)
}

func (p predicate) String() string { return "P(func)" }

// ------------------------------------- parsing -------------------------------------

// Parse builds a selector from its textual kind and expression, as used in
// config files. An empty kind means exact.
func Parse(kind, expr string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "exact", "object":
		return Object(expr), nil
	case "regex":
		return Regex(expr)
	case "glob", "topic":
		return Glob(expr)
	case "all":
		return MatchAll(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Describe returns a human readable form of s.
func Describe(s Selector) string {
	if s == nil {
		return "<nil>"
	}
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T(%v)", s, s.Object())
}

func keyString(key any) (string, bool) {
	switch k := key.(type) {
	case string:
		return k, true
	case fmt.Stringer:
		return k.String(), true
	default:
		return "", false
	}
}

// Package uritemplate implements a prefix tree of URI templates such as
// "/items/{id}" or "/files/*". The tree has a narrow contract: Insert a
// pattern with its value, Match a concrete path (optionally followed by
// "?query") and collect the template variables.
package uritemplate

import (
	"fmt"
	"net/url"
	"strings"
)

// Error describes a pattern that could not be inserted.
type Error struct {
	Pattern string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("uri template %q: %s: %v", e.Pattern, e.Reason, e.Err)
	}
	return fmt.Sprintf("uri template %q: %s", e.Pattern, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Tree maps URI templates to values of type T.
// A Tree is not safe for concurrent Insert; Match may be called
// concurrently once all inserts are done.
type Tree[T any] struct {
	root *node[T]
	size int
}

type node[T any] struct {
	literals map[string]*node[T]
	variable *node[T]
	leaf     *leaf[T]
	wildcard *leaf[T]
}

type leaf[T any] struct {
	pattern string
	value   T
	vars    []string // names of the variable segments, in path order
	query   []queryVar
}

type queryVar struct {
	key  string
	name string
}

// New creates an empty tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{root: &node[T]{}}
}

// Len returns the number of inserted patterns.
func (t *Tree[T]) Len() int {
	return t.size
}

// Insert adds pattern to the tree. Patterns that differ only in variable
// names are considered duplicates.
func (t *Tree[T]) Insert(pattern string, value T) error {
	p, err := parse(pattern)
	if err != nil {
		return err
	}

	n := t.root
	for _, seg := range p.segments {
		switch seg.kind {
		case segLiteral:
			if n.literals == nil {
				n.literals = make(map[string]*node[T])
			}
			child, ok := n.literals[seg.value]
			if !ok {
				child = &node[T]{}
				n.literals[seg.value] = child
			}
			n = child
		case segVariable:
			if n.variable == nil {
				n.variable = &node[T]{}
			}
			n = n.variable
		}
	}

	l := &leaf[T]{pattern: pattern, value: value, vars: p.vars, query: p.query}
	if p.wildcard {
		if n.wildcard != nil {
			return &Error{Pattern: pattern, Reason: fmt.Sprintf("conflicts with %q", n.wildcard.pattern)}
		}
		n.wildcard = l
	} else {
		if n.leaf != nil {
			return &Error{Pattern: pattern, Reason: fmt.Sprintf("conflicts with %q", n.leaf.pattern)}
		}
		n.leaf = l
	}

	t.size++
	return nil
}

// Match finds the value whose template matches key. Key is a path,
// optionally followed by "?" and a raw query string. Template variables are
// written to params (when non-nil) only on success.
//
// Literal segments win over variables, variables win over a wildcard.
func (t *Tree[T]) Match(key string, params map[string]string) (T, bool) {
	var zero T

	path, rawQuery, _ := strings.Cut(key, "?")
	segs := splitPath(path)
	for i, s := range segs {
		if dec, err := url.PathUnescape(s); err == nil {
			segs[i] = dec
		}
	}

	l, vals := t.root.match(segs, 0, nil)
	if l == nil {
		return zero, false
	}

	if params != nil {
		for i, name := range l.vars {
			params[name] = vals[i]
		}
		if len(l.query) > 0 {
			q, _ := url.ParseQuery(rawQuery)
			for _, qv := range l.query {
				if v, ok := q[qv.key]; ok && len(v) > 0 {
					params[qv.name] = v[0]
				}
			}
		}
	}
	return l.value, true
}

func (n *node[T]) match(segs []string, i int, vals []string) (*leaf[T], []string) {
	if i == len(segs) {
		if n.leaf != nil {
			return n.leaf, vals
		}
		if n.wildcard != nil {
			return n.wildcard, vals
		}
		return nil, nil
	}

	if child, ok := n.literals[segs[i]]; ok {
		if l, v := child.match(segs, i+1, vals); l != nil {
			return l, v
		}
	}

	if n.variable != nil && segs[i] != "" {
		if l, v := n.variable.match(segs, i+1, append(vals[:len(vals):len(vals)], segs[i])); l != nil {
			return l, v
		}
	}

	if n.wildcard != nil {
		return n.wildcard, vals
	}
	return nil, nil
}

// Variables lists the variable names declared by pattern, path variables
// first. Malformed patterns yield the names parsed before the error.
func Variables(pattern string) []string {
	p, _ := parse(pattern)
	names := make([]string, 0, len(p.vars)+len(p.query))
	names = append(names, p.vars...)
	for _, q := range p.query {
		names = append(names, q.name)
	}
	return names
}

type segKind int

const (
	segLiteral segKind = iota
	segVariable
)

type segment struct {
	kind  segKind
	value string // decoded literal or variable name
}

type parsed struct {
	segments []segment
	vars     []string
	query    []queryVar
	wildcard bool
}

func parse(pattern string) (parsed, error) {
	var p parsed

	pathPart, queryPart, hasQuery := strings.Cut(pattern, "?")
	seen := make(map[string]bool)

	raw := splitPath(strings.TrimSuffix(pathPart, "/"))
	for i, s := range raw {
		if s == "*" {
			if i != len(raw)-1 {
				return p, &Error{Pattern: pattern, Reason: "wildcard must be the last segment"}
			}
			p.wildcard = true
			break
		}
		if s == "" {
			return p, &Error{Pattern: pattern, Reason: "empty path segment"}
		}

		name, isVar, err := variableName(s)
		if err != nil {
			return p, &Error{Pattern: pattern, Reason: err.Error()}
		}
		if isVar {
			if seen[name] {
				return p, &Error{Pattern: pattern, Reason: fmt.Sprintf("duplicate variable %q", name)}
			}
			seen[name] = true
			p.vars = append(p.vars, name)
			p.segments = append(p.segments, segment{kind: segVariable, value: name})
			continue
		}

		dec, err := url.PathUnescape(s)
		if err != nil {
			return p, &Error{Pattern: pattern, Reason: "invalid encoding", Err: err}
		}
		p.segments = append(p.segments, segment{kind: segLiteral, value: dec})
	}

	if !hasQuery || queryPart == "" {
		return p, nil
	}

	for _, pair := range strings.Split(queryPart, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return p, &Error{Pattern: pattern, Reason: fmt.Sprintf("query template %q must be key={variable}", pair)}
		}
		name, isVar, err := variableName(v)
		if err != nil {
			return p, &Error{Pattern: pattern, Reason: err.Error()}
		}
		if !isVar {
			return p, &Error{Pattern: pattern, Reason: fmt.Sprintf("query template %q must be key={variable}", pair)}
		}
		if seen[name] {
			return p, &Error{Pattern: pattern, Reason: fmt.Sprintf("duplicate variable %q", name)}
		}
		seen[name] = true
		p.query = append(p.query, queryVar{key: k, name: name})
	}
	return p, nil
}

// variableName reports whether s is a "{name}" segment.
func variableName(s string) (string, bool, error) {
	open := strings.Count(s, "{")
	closed := strings.Count(s, "}")
	if open == 0 && closed == 0 {
		return "", false, nil
	}
	if open != closed {
		return "", false, fmt.Errorf("unbalanced braces in %q", s)
	}
	if open > 1 || s[0] != '{' || s[len(s)-1] != '}' {
		return "", false, fmt.Errorf("variable must span the whole segment in %q", s)
	}
	name := strings.TrimSpace(s[1 : len(s)-1])
	if name == "" {
		return "", false, fmt.Errorf("empty variable name in %q", s)
	}
	return name, true, nil
}

// splitPath splits on "/" after dropping one leading separator.
// The root path yields no segments.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

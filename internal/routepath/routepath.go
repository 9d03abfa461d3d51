// Package routepath unifies the path-parameter dialects of web frameworks
// into a single brace form and provides segment helpers shared by the
// extraction and analytics code.
//
//	/users/:id          -> /users/{id}
//	/users/<int:id>     -> /users/{id}   (type integer)
//	/items/{id:\d+}     -> /items/{id}   (type integer)
//	/blog/[...slug]     -> /blog/{slug}
//	/files/*path        -> /files/{path}
package routepath

import (
	"regexp"
	"strings"
)

// Param is a path parameter recovered from a route template.
type Param struct {
	Name     string
	Type     string // string, integer, number
	Optional bool   // :id?, {id?}, [[...slug]]
}

var (
	colonParam    = regexp.MustCompile(`:([A-Za-z_]\w*)(?:\(([^)]*)\))?(\??)`)
	angleParam    = regexp.MustCompile(`<(?:([A-Za-z_]\w*):)?([A-Za-z_]\w*)>`)
	namedGroup    = regexp.MustCompile(`\(\?P?<([A-Za-z_]\w*)>([^)]*)\)`)
	bracketParam  = regexp.MustCompile(`^\[\[?(?:\.\.\.)?([A-Za-z_]\w*)\]?\]$`)
	wildcardParam = regexp.MustCompile(`^\*([A-Za-z_]\w*)?$`)
	digitsPattern = regexp.MustCompile(`^(?:\\d|\[0-9\])[+*]?(?:\{\d*,?\d*\})?$`)
)

// Normalize rewrites a raw route template into brace form and returns the
// parameters it declares, in order. The result always starts with "/", has
// no duplicate or trailing slashes and is stable under re-normalization.
func Normalize(raw string) (string, []Param) {
	p := strings.TrimSpace(raw)
	p = strings.TrimPrefix(p, "^")
	p = strings.TrimSuffix(p, "$")

	var params []Param
	seen := map[string]bool{}
	add := func(name, typ string, optional bool) string {
		if typ == "" {
			typ = "string"
		}
		if !seen[name] {
			seen[name] = true
			params = append(params, Param{Name: name, Type: typ, Optional: optional})
		}
		return "{" + name + "}"
	}

	segs := splitSegments(p)
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg == "" || seg == "." {
			continue
		}
		out = append(out, normalizeSegment(seg, add))
	}

	if len(out) == 0 {
		return "/", params
	}
	return "/" + strings.Join(out, "/"), params
}

// Clean normalizes a template and drops the parameter list.
func Clean(raw string) string {
	p, _ := Normalize(raw)
	return p
}

func normalizeSegment(seg string, add func(name, typ string, optional bool) string) string {
	if m := bracketParam.FindStringSubmatch(seg); m != nil {
		return add(m[1], "", strings.HasPrefix(seg, "[["))
	}
	if m := wildcardParam.FindStringSubmatch(seg); m != nil {
		name := m[1]
		if name == "" {
			name = "wildcard"
		}
		return add(name, "", false)
	}
	if strings.HasPrefix(seg, "{") && matchBrace(seg, 0) == len(seg)-1 {
		return add(braceParam(seg[1 : len(seg)-1]))
	}

	seg = namedGroup.ReplaceAllStringFunc(seg, func(s string) string {
		m := namedGroup.FindStringSubmatch(s)
		return add(m[1], typeFromConstraint(m[2]), false)
	})
	seg = angleParam.ReplaceAllStringFunc(seg, func(s string) string {
		m := angleParam.FindStringSubmatch(s)
		return add(m[2], typeFromConverter(m[1]), false)
	})
	if strings.Contains(seg, "{") {
		seg = inlineBraces(seg, add)
	}
	return colonParam.ReplaceAllStringFunc(seg, func(s string) string {
		m := colonParam.FindStringSubmatch(s)
		return add(m[1], typeFromConstraint(m[2]), m[3] == "?")
	})
}

// braceParam handles {name}, {name:regex}, {name:int}, {name?}, {*name}
// and {name...}.
func braceParam(inner string) (string, string, bool) {
	inner = strings.TrimLeft(inner, "*")
	name, constraint := inner, ""
	if i := strings.IndexAny(inner, ":="); i >= 0 {
		name, constraint = inner[:i], inner[i+1:]
	}
	name = strings.TrimSpace(name)
	optional := strings.HasSuffix(name, "?") || strings.HasSuffix(constraint, "?")
	name = strings.TrimSuffix(name, "?")
	constraint = strings.TrimSuffix(constraint, "?")
	name = strings.TrimSuffix(name, "...")
	if name == "" {
		name = "param"
	}
	typ := typeFromConverter(constraint)
	if typ == "string" {
		typ = typeFromConstraint(constraint)
	}
	return name, typ, optional
}

func inlineBraces(seg string, add func(name, typ string, optional bool) string) string {
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		if seg[i] != '{' {
			b.WriteByte(seg[i])
			continue
		}
		end := matchBrace(seg, i)
		if end < 0 {
			b.WriteString(seg[i:])
			break
		}
		b.WriteString(add(braceParam(seg[i+1 : end])))
		i = end
	}
	return b.String()
}

func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitSegments splits on "/" outside of braces, parentheses and angle brackets.
func splitSegments(p string) []string {
	var segs []string
	depth := 0
	start := 0
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '{', '(', '<':
			depth++
		case '}', ')', '>':
			if depth > 0 {
				depth--
			}
		case '/':
			if depth == 0 {
				segs = append(segs, p[start:i])
				start = i + 1
			}
		}
	}
	return append(segs, p[start:])
}

func typeFromConverter(conv string) string {
	switch strings.ToLower(strings.TrimSpace(conv)) {
	case "int", "integer", "long", "int32", "int64", "i32", "i64", "u32", "u64", "usize", "number":
		return "integer"
	case "float", "double", "decimal":
		return "number"
	case "bool", "boolean":
		return "boolean"
	}
	return "string"
}

func typeFromConstraint(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return "string"
	}
	if digitsPattern.MatchString(c) {
		return "integer"
	}
	return typeFromConverter(c)
}

// Join concatenates a prefix and a path with exactly one slash between them.
func Join(prefix, path string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	if prefix == "" {
		if strings.HasPrefix(path, "/") {
			return path
		}
		return "/" + path
	}
	return prefix + "/" + strings.TrimLeft(path, "/")
}

// Segments returns the non-empty segments of a normalized path.
func Segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsParam reports whether a normalized segment is a parameter placeholder.
func IsParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

// ParamNames lists the placeholders of a normalized path.
func ParamNames(path string) []string {
	var names []string
	for _, s := range Segments(path) {
		if IsParam(s) {
			names = append(names, s[1:len(s)-1])
		}
	}
	return names
}

// GroupPrefix returns "/" followed by the first non-parameter segment of a
// normalized path, or "/" when there is none.
func GroupPrefix(path string) string {
	for _, s := range Segments(path) {
		if !IsParam(s) {
			return "/" + s
		}
	}
	return "/"
}

// Shape replaces every parameter segment with "{}" so templates that only
// differ in parameter names compare equal.
func Shape(path string) string {
	segs := Segments(path)
	for i, s := range segs {
		if IsParam(s) {
			segs[i] = "{}"
		}
	}
	return "/" + strings.Join(segs, "/")
}

// Matches reports whether a concrete request path (e.g. "/users/42")
// is served by a normalized template (e.g. "/users/{id}").
func Matches(template, concrete string) bool {
	if i := strings.IndexAny(concrete, "?#"); i >= 0 {
		concrete = concrete[:i]
	}
	ts := Segments(template)
	cs := Segments(Clean(concrete))
	if len(ts) != len(cs) {
		return false
	}
	for i := range ts {
		if IsParam(ts[i]) || IsParam(cs[i]) {
			continue
		}
		if !strings.EqualFold(ts[i], cs[i]) {
			return false
		}
	}
	return true
}

// Package script builds JavaScript sent through a channel.Channel.
//
// A Template is fixed source text with named holes. Every parameter is
// encoded as a JSON literal before it reaches the template, so page-bound
// values (fill text, storage keys, selectors) can never change the shape of
// the generated program. The only way to splice raw code is a Fragment,
// which callers obtain from another Template render, never from user input.
package script

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Fragment is trusted JavaScript source. Render output is a Fragment.
type Fragment string

func (f Fragment) String() string { return string(f) }

// Params are the named values of a render.
type Params map[string]any

// Template is a parsed script template. Holes use text/template syntax:
// {{.Name}}.
type Template struct {
	name string
	tmpl *template.Template
}

// New parses src.
func New(name, src string) (*Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("script: parse %s: %w", name, err)
	}
	return &Template{name: name, tmpl: t}, nil
}

// Must is New that panics. Used for package-level templates.
func Must(name, src string) *Template {
	t, err := New(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Render fills the template. Fragment values are spliced verbatim, every
// other value is replaced by its JSON encoding.
func (t *Template) Render(p Params) (Fragment, error) {
	data := make(map[string]Fragment, len(p))
	for k, v := range p {
		if f, ok := v.(Fragment); ok {
			data[k] = f
			continue
		}
		lit, err := Literal(v)
		if err != nil {
			return "", fmt.Errorf("script: %s: param %s: %w", t.name, k, err)
		}
		data[k] = lit
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("script: render %s: %w", t.name, err)
	}
	return Fragment(strings.TrimSpace(b.String())), nil
}

// Literal encodes v as a JavaScript literal. encoding/json escapes <, >, &,
// U+2028 and U+2029, so the result is safe inside any expression context.
func Literal(v any) (Fragment, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Fragment(b), nil
}

// Call renders a single-statement method call such as
// localStorage.getItem("k"). recv and method are code, args are literals.
func Call(recv, method string, args ...any) (Fragment, error) {
	lits := make([]string, 0, len(args))
	for i, a := range args {
		l, err := Literal(a)
		if err != nil {
			return "", fmt.Errorf("script: %s.%s arg %d: %w", recv, method, i, err)
		}
		lits = append(lits, string(l))
	}
	return Fragment(recv + "." + method + "(" + strings.Join(lits, ", ") + ")"), nil
}

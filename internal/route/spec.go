// Package route defines the declarative forwarding rules interpreted by the gateway.
package route

import (
	"fmt"
	"strings"
)

// BodyKind selects how an inbound body is transcoded for the upstream.
type BodyKind string

const (
	BodyNone      BodyKind = "none"
	BodyJSON      BodyKind = "json"
	BodyMultipart BodyKind = "multipart"
)

// DeriveKind is the numeric type a multipart derivation produces.
type DeriveKind string

const (
	DeriveInt   DeriveKind = "int"
	DeriveFloat DeriveKind = "float"
)

// Spec describes one forwarding rule. Specs are built once at start-up and
// must not be mutated afterwards; they are shared by all request goroutines.
type Spec struct {
	Name   string `toml:"name"`
	Method string `toml:"method"`
	// Path is the route template relative to the gateway prefix, e.g.
	// "/candidates/{id}/evaluations".
	Path string `toml:"path"`
	// UpstreamPath defaults to Path.
	UpstreamPath string `toml:"upstream_path"`
	// Upstream overrides the configured upstream base URL for this route.
	Upstream string   `toml:"upstream"`
	Body     BodyKind `toml:"body"`

	Query          []string `toml:"query"`
	RequiredQuery  []string `toml:"required_query"`
	RequiredFields []string `toml:"required_fields"`

	Renames []Rename       `toml:"renames"`
	Inject  map[string]any `toml:"inject"`
	Derive  []Derivation   `toml:"derive"`
	Flatten *Flatten       `toml:"flatten"`

	CookieAuth  bool `toml:"cookie_auth"`
	SuccessFlag bool `toml:"success_flag"`
}

// Rename moves a body field to a new name before transmission.
type Rename struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// Derivation computes a numeric multipart field from a string field.
// Default is used when the source field is absent or blank.
type Derivation struct {
	From    string     `toml:"from"`
	To      string     `toml:"to"`
	Kind    DeriveKind `toml:"kind"`
	Default string     `toml:"default"`
}

// Flatten copies a nested value of every list item into a top-level field.
type Flatten struct {
	// List is the top-level key holding the items; empty means the response
	// body itself is the list.
	List   string `toml:"list"`
	Source string `toml:"source"` // dotted path, e.g. "company.name"
	Target string `toml:"target"`
}

// TargetPath returns the upstream path template.
func (s *Spec) TargetPath() string {
	if s.UpstreamPath != "" {
		return s.UpstreamPath
	}
	return s.Path
}

// Kind returns the declared body kind, treating an empty value as none.
func (s *Spec) Kind() BodyKind {
	if s.Body == "" {
		return BodyNone
	}
	return s.Body
}

// Params lists the placeholder names of Path in order of appearance.
func (s *Spec) Params() []string {
	names, _ := placeholders(s.Path)
	return names
}

// EchoPath converts Path into echo's ":param" syntax under prefix.
func (s *Spec) EchoPath(prefix string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(prefix, "/"))
	rest := s.Path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		b.WriteByte(':')
		b.WriteString(rest[open+1 : open+end])
		rest = rest[open+end+1:]
	}
	return b.String()
}

// placeholders extracts "{name}" segments from a path template.
func placeholders(tmpl string) ([]string, error) {
	var names []string
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		closeIdx := strings.IndexByte(rest, '}')
		if open < 0 {
			if closeIdx >= 0 {
				return nil, fmt.Errorf("unbalanced '}' in %q", tmpl)
			}
			return names, nil
		}
		if closeIdx < open {
			return nil, fmt.Errorf("unbalanced braces in %q", tmpl)
		}
		name := rest[open+1 : closeIdx]
		if name == "" || strings.ContainsAny(name, "{/") {
			return nil, fmt.Errorf("invalid placeholder %q in %q", name, tmpl)
		}
		names = append(names, name)
		rest = rest[closeIdx+1:]
	}
}

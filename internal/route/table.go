package route

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Table is an immutable, validated set of route specs.
type Table struct {
	specs  []*Spec
	byName map[string]*Spec
}

// NewTable validates specs and builds a Table. Upstream overrides (route
// name → base URL) are applied on top of each spec's own Upstream value.
func NewTable(specs []Spec, overrides map[string]string) (*Table, error) {
	t := &Table{
		specs:  make([]*Spec, 0, len(specs)),
		byName: make(map[string]*Spec, len(specs)),
	}
	routes := make(map[string]string, len(specs))

	var errs []error
	for i := range specs {
		s := specs[i]
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("route %d (%s): %w", i, s.Name, err))
			continue
		}
		if _, dup := t.byName[s.Name]; dup {
			errs = append(errs, fmt.Errorf("route %q: duplicate name", s.Name))
			continue
		}
		key := s.Method + " " + pathShape(s.Path)
		if other, dup := routes[key]; dup {
			errs = append(errs, fmt.Errorf("route %q: %s already declared by %q", s.Name, key, other))
			continue
		}
		routes[key] = s.Name
		t.specs = append(t.specs, &s)
		t.byName[s.Name] = &s
	}

	for name, base := range overrides {
		s, ok := t.byName[name]
		if !ok {
			errs = append(errs, fmt.Errorf("upstream override for unknown route %q", name))
			continue
		}
		if err := validateBaseURL(base); err != nil {
			errs = append(errs, fmt.Errorf("upstream override for %q: %w", name, err))
			continue
		}
		s.Upstream = base
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// Specs returns the routes in declaration order.
func (t *Table) Specs() []*Spec {
	return t.specs
}

// Lookup returns the spec registered under name.
func (t *Table) Lookup(name string) (*Spec, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.specs)
}

func (s *Spec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("name is required")
	}
	s.Method = strings.ToUpper(s.Method)
	if !knownMethods[s.Method] {
		return fmt.Errorf("unsupported method %q", s.Method)
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("path must start with '/'; got %q", s.Path)
	}
	params, err := placeholders(s.Path)
	if err != nil {
		return fmt.Errorf("path: %w", err)
	}
	if s.UpstreamPath != "" {
		if !strings.HasPrefix(s.UpstreamPath, "/") {
			return fmt.Errorf("upstream_path must start with '/'; got %q", s.UpstreamPath)
		}
		targets, err := placeholders(s.UpstreamPath)
		if err != nil {
			return fmt.Errorf("upstream_path: %w", err)
		}
		for _, p := range targets {
			if !slices.Contains(params, p) {
				return fmt.Errorf("upstream_path placeholder {%s} is not in path", p)
			}
		}
	}
	if s.Upstream != "" {
		if err := validateBaseURL(s.Upstream); err != nil {
			return fmt.Errorf("upstream: %w", err)
		}
	}

	for _, q := range append(slices.Clone(s.Query), s.RequiredQuery...) {
		if q == "" {
			return errors.New("query parameter names must be non-empty")
		}
	}
	for _, q := range s.RequiredQuery {
		if !slices.Contains(s.Query, q) {
			return fmt.Errorf("required query %q is not in the query allow-list", q)
		}
	}

	for _, r := range s.Renames {
		if r.From == "" || r.To == "" {
			return errors.New("renames need both from and to")
		}
	}

	switch s.Kind() {
	case BodyNone:
		if len(s.Renames) > 0 || len(s.Inject) > 0 || len(s.Derive) > 0 || len(s.RequiredFields) > 0 {
			return errors.New("body options require a json or multipart body")
		}
	case BodyJSON:
		if len(s.Derive) > 0 {
			return errors.New("derive is only supported for multipart bodies")
		}
	case BodyMultipart:
		if len(s.Inject) > 0 || len(s.RequiredFields) > 0 {
			return errors.New("inject and required_fields are only supported for json bodies")
		}
		for _, d := range s.Derive {
			if d.From == "" || d.To == "" {
				return errors.New("derive needs both from and to")
			}
			if d.Kind != DeriveInt && d.Kind != DeriveFloat {
				return fmt.Errorf("derive %q: unknown kind %q", d.To, d.Kind)
			}
		}
	default:
		return fmt.Errorf("unknown body kind %q", s.Body)
	}

	if f := s.Flatten; f != nil {
		if f.Source == "" || f.Target == "" {
			return errors.New("flatten needs both source and target")
		}
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https; got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// pathShape replaces every placeholder with "{}" so that templates differing
// only in parameter names compare equal, as they do in echo's router.
func pathShape(tmpl string) string {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:open])
		b.WriteString("{}")
		rest = rest[open+end+1:]
	}
}

// Package service implements the generic forwarding routine that interprets
// the route table.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"recruit-gateway/internal/client"
	"recruit-gateway/internal/config"
	"recruit-gateway/internal/model"
	"recruit-gateway/internal/route"
)

// forwardableRequestHeaders are the only inbound headers copied upstream
// besides the credential.
var forwardableRequestHeaders = []string{
	"Accept-Language",
}

// Gateway relays inbound requests to the upstream according to a route.Spec.
type Gateway struct {
	client    *client.UpstreamClient
	cfg       *config.Config
	logger    *slog.Logger
	userAgent string
	jwtParser *jwt.Parser
}

// NewGateway creates a Gateway.
func NewGateway(c *client.UpstreamClient, cfg *config.Config, v model.Version, logger *slog.Logger) *Gateway {
	return &Gateway{
		client:    c,
		cfg:       cfg,
		logger:    logger.With("component", "gateway"),
		userAgent: "recruit-gateway/" + string(v),
		jwtParser: jwt.NewParser(),
	}
}

// Forward issues exactly one upstream call for in and normalizes the answer.
//
// A non-nil error is always a *ClientInputError, *LocalProcessingError,
// *TransportError or *UpstreamError. Input errors are reported before any
// network call.
func (g *Gateway) Forward(in *model.InboundRequest, spec *route.Spec) (*model.GatewayResponse, error) {
	out, err := g.buildOutbound(in, spec)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(contextOrBackground(in.Ctx), out)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return normalize(spec, resp)
}

func (g *Gateway) buildOutbound(in *model.InboundRequest, spec *route.Spec) (*model.OutboundRequest, error) {
	path, err := resolvePath(spec.TargetPath(), in.PathParams)
	if err != nil {
		return nil, err
	}

	query, err := composeQuery(spec, in.Query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := transcode(in.Body, spec)
	if err != nil {
		return nil, err
	}

	header := g.outboundHeader(in, spec)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	target := strings.TrimSuffix(g.baseURL(spec), "/") + path
	if query != "" {
		target += "?" + query
	}

	return &model.OutboundRequest{
		Route:  spec.Name,
		Method: spec.Method,
		URL:    target,
		Header: header,
		Body:   body,
	}, nil
}

func (g *Gateway) baseURL(spec *route.Spec) string {
	if spec.Upstream != "" {
		return spec.Upstream
	}
	return g.cfg.Upstream.BaseURL
}

// resolvePath substitutes "{name}" placeholders with path-escaped parameters.
func resolvePath(tmpl string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", &LocalProcessingError{Op: "resolve path", Err: fmt.Errorf("malformed template %q", tmpl)}
		}
		name := rest[open+1 : open+end]
		val := params[name]
		if val == "" {
			return "", clientInputf("missing path parameter: %s", name)
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(val))
		rest = rest[open+end+1:]
	}
}

// composeQuery keeps only the declared parameters, in declaration order.
func composeQuery(spec *route.Spec, inbound url.Values) (string, error) {
	for _, name := range spec.RequiredQuery {
		if inbound.Get(name) == "" {
			return "", clientInputf("missing query parameter: %s", name)
		}
	}

	var b strings.Builder
	for _, name := range spec.Query {
		for _, v := range inbound[name] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String(), nil
}

func (g *Gateway) outboundHeader(in *model.InboundRequest, spec *route.Spec) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("User-Agent", g.userAgent)
	if in.RequestID != "" {
		h.Set("X-Request-Id", in.RequestID)
	}
	for _, key := range forwardableRequestHeaders {
		if v := headerValue(in.Header, key); v != "" {
			h.Set(key, v)
		}
	}

	auth, source := g.credential(in, spec)
	if auth != "" {
		h.Set("Authorization", auth)
	}

	if g.logger.Enabled(contextOrBackground(in.Ctx), slog.LevelDebug) {
		g.logger.Debug("forwarding request",
			"route", spec.Name,
			"method", spec.Method,
			"credential", source,
			"subject", g.tokenSubject(auth),
		)
	}
	return h
}

// credential returns the Authorization value to forward and where it came from.
// An inbound header always wins; the cookie is only consulted for CookieAuth routes.
func (g *Gateway) credential(in *model.InboundRequest, spec *route.Spec) (string, string) {
	if v := headerValue(in.Header, "Authorization"); v != "" {
		return v, "header"
	}
	if spec.CookieAuth {
		if token := in.Cookie(g.cfg.Gateway.CookieName); token != "" {
			return "Bearer " + token, "cookie"
		}
	}
	return "", "none"
}

// tokenSubject reads the "sub" claim of a bearer JWT without verifying it.
// It is only used for diagnostics.
func (g *Gateway) tokenSubject(auth string) string {
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := g.jwtParser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// headerValue looks a header up by case-insensitive name. Headers built
// outside net/http may carry non-canonical keys.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for k, vals := range h {
		if strings.EqualFold(k, name) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

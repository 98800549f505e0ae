// Package model defines request-scoped types shared by the gateway layers.
package model

import (
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
)

// InboundRequest is a browser request bound to a route.
type InboundRequest struct {
	Ctx        context.Context
	Method     string
	PathParams map[string]string
	Query      url.Values
	Header     http.Header
	Cookies    []*http.Cookie
	Body       Body
	RequestID  string
}

// Body is the tagged inbound body: NoBody, JSONBody or MultipartBody.
type Body interface {
	body()
}

// NoBody marks a request forwarded without a body.
type NoBody struct{}

// JSONBody carries the raw inbound JSON document.
type JSONBody struct {
	Raw []byte
}

// MultipartBody carries a parsed multipart form.
type MultipartBody struct {
	Form *multipart.Form
}

func (NoBody) body()        {}
func (JSONBody) body()      {}
func (MultipartBody) body() {}

// Cookie returns the value of the named cookie, or "" if absent.
func (r *InboundRequest) Cookie(name string) string {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// OutboundRequest is the request issued to the upstream for one InboundRequest.
type OutboundRequest struct {
	Route  string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// UpstreamResponse is the fully read upstream answer.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// GatewayResponse is what the gateway writes back to the client.
type GatewayResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Version is the build version, injected for the User-Agent and status endpoint.
type Version string

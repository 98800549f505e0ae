// Package handler binds echo requests to the gateway and renders its results.
package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"recruit-gateway/internal/config"
	"recruit-gateway/internal/middleware"
	"recruit-gateway/internal/model"
	"recruit-gateway/internal/route"
	"recruit-gateway/internal/service"
)

// credentialPattern matches bearer tokens and token-like parameters in error text.
var credentialPattern = regexp.MustCompile(`(?i)(bearer\s+|token=)[^&\s"]+`)

// GatewayHandler serves every route of the table through service.Gateway.
type GatewayHandler struct {
	gateway *service.Gateway
	cfg     *config.Config
	logger  *slog.Logger
}

// NewGatewayHandler creates a GatewayHandler.
func NewGatewayHandler(gw *service.Gateway, cfg *config.Config, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		gateway: gw,
		cfg:     cfg,
		logger:  logger.With("component", "gateway_handler"),
	}
}

// For returns the echo handler for spec.
func (h *GatewayHandler) For(spec *route.Spec) echo.HandlerFunc {
	return func(c echo.Context) error {
		middleware.SetRoute(c, spec.Name)

		in, err := h.bind(c, spec)
		if err != nil {
			return h.mapError(c, spec, err)
		}
		if mb, ok := in.Body.(model.MultipartBody); ok && mb.Form != nil {
			defer func() { _ = mb.Form.RemoveAll() }()
		}

		resp, err := h.gateway.Forward(in, spec)
		if err != nil {
			return h.mapError(c, spec, err)
		}

		if len(resp.Body) == 0 {
			return c.NoContent(resp.StatusCode)
		}
		return c.Blob(resp.StatusCode, resp.ContentType, resp.Body)
	}
}

// ErrorHandler renders errors that never reached a route handler, such as
// body-limit rejections, in the envelope of the matched gateway route.
// Requests outside the table go to fallback.
func (h *GatewayHandler) ErrorHandler(table *route.Table, fallback echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	specs := make(map[string]*route.Spec, table.Len())
	for _, spec := range table.Specs() {
		specs[spec.Method+" "+spec.EchoPath(h.cfg.Gateway.Prefix)] = spec
	}

	return func(err error, c echo.Context) {
		spec, ok := specs[c.Request().Method+" "+c.Path()]
		if !ok || c.Response().Committed {
			fallback(err, c)
			return
		}
		middleware.SetRoute(c, spec.Name)
		if err := h.mapError(c, spec, err); err != nil {
			h.logger.Error("write error response", "route", spec.Name, "err", err)
		}
	}
}

// bind builds the InboundRequest for spec from the echo context. The body is
// read according to the route's declared kind, not the request's Content-Type.
func (h *GatewayHandler) bind(c echo.Context, spec *route.Spec) (*model.InboundRequest, error) {
	req := c.Request()

	params := make(map[string]string)
	for _, name := range spec.Params() {
		v := c.Param(name)
		// echo v4 matches on the raw path when one is present and does
		// not unescape c.Param values.
		if req.URL.RawPath != "" {
			if unescaped, err := url.PathUnescape(v); err == nil {
				v = unescaped
			}
		}
		params[name] = v
	}

	in := &model.InboundRequest{
		Ctx:        req.Context(),
		Method:     req.Method,
		PathParams: params,
		Query:      req.URL.Query(),
		Header:     req.Header,
		Cookies:    req.Cookies(),
		RequestID:  requestID(c),
	}

	switch spec.Kind() {
	case route.BodyJSON:
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, readError(err)
		}
		in.Body = model.JSONBody{Raw: raw}
	case route.BodyMultipart:
		if err := req.ParseMultipartForm(h.cfg.Gateway.MultipartMaxMemory); err != nil {
			return nil, readError(err)
		}
		in.Body = model.MultipartBody{Form: req.MultipartForm}
	default:
		in.Body = model.NoBody{}
	}

	return in, nil
}

// readError keeps echo's body-limit error intact so it renders with its own status.
func readError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return &service.LocalProcessingError{Op: "read request body", Err: err}
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// mapError renders err as the error envelope for spec.
func (h *GatewayHandler) mapError(c echo.Context, spec *route.Spec, err error) error {
	status, msg := classify(err)

	attrs := []any{
		"route", spec.Name,
		"status", status,
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("gateway error", attrs...)
	} else {
		h.logger.Warn("gateway error", attrs...)
	}

	envelope := map[string]any{"error": msg}
	if spec.SuccessFlag {
		envelope["success"] = false
	}
	return c.JSON(status, envelope)
}

// classify maps an error from service.Gateway to a status and client message.
func classify(err error) (int, string) {
	var inputErr *service.ClientInputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest, inputErr.Msg
	}

	var upErr *service.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Status, upErr.Message
	}

	var trErr *service.TransportError
	if errors.As(err, &trErr) {
		return http.StatusInternalServerError, trErr.Message()
	}

	var localErr *service.LocalProcessingError
	if errors.As(err, &localErr) {
		return http.StatusInternalServerError, localErr.Error()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if text := http.StatusText(he.Code); text != "" {
			return he.Code, text
		}
		return he.Code, fmt.Sprint(he.Message)
	}

	return http.StatusInternalServerError, fmt.Sprint(err)
}

// sanitizeError redacts credentials from error messages before logging.
func sanitizeError(err error) string {
	return credentialPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}

package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"recruit-gateway/internal/model"
	"recruit-gateway/internal/route"
)

// upstreamMessageKeys are checked in order for a human-readable error.
var upstreamMessageKeys = []string{"detail", "error"}

func normalize(spec *route.Spec, resp *model.UpstreamResponse) (*model.GatewayResponse, error) {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpstreamError{
			Status:  resp.StatusCode,
			Message: upstreamMessage(resp.StatusCode, resp.Body),
		}
	}

	if len(resp.Body) == 0 {
		return &model.GatewayResponse{StatusCode: resp.StatusCode}, nil
	}

	contentType := resp.Header.Get("Content-Type")
	declaredJSON := isJSON(contentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	verbatim := &model.GatewayResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        resp.Body,
	}

	if spec.Flatten == nil {
		return verbatim, nil
	}

	// Flatten routes are decoded whatever the media type; an undeclared body
	// that is not JSON is relayed as-is.
	doc, err := decodeDocument(resp.Body)
	if err != nil {
		if !declaredJSON {
			return verbatim, nil
		}
		return nil, &LocalProcessingError{Op: "decode upstream response", Err: err}
	}

	flatten(doc, spec.Flatten)

	data, err := encodeJSON(doc)
	if err != nil {
		return nil, &LocalProcessingError{Op: "encode response", Err: err}
	}
	return &model.GatewayResponse{
		StatusCode:  resp.StatusCode,
		ContentType: "application/json",
		Body:        data,
	}, nil
}

// decodeDocument parses a single JSON value, keeping numbers as json.Number.
func decodeDocument(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return doc, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// flatten copies the value at f.Source into f.Target on every object item of
// the list selected by f.List. Items lacking the source get a null target.
func flatten(doc any, f *route.Flatten) {
	var items []any
	if f.List == "" {
		items, _ = doc.([]any)
	} else if obj, ok := doc.(map[string]any); ok {
		items, _ = obj[f.List].([]any)
	}

	path := strings.Split(f.Source, ".")
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		obj[f.Target] = lookup(obj, path)
	}
}

func lookup(obj map[string]any, path []string) any {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[key]; !ok {
			return nil
		}
	}
	return cur
}

// upstreamMessage extracts the best human-readable message from an error body:
// a conventional JSON key, else the raw text, else the status text.
func upstreamMessage(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err == nil {
		for _, key := range upstreamMessageKeys {
			if msg := rawMessage(doc[key]); msg != "" {
				return msg
			}
		}
	}

	if len(trimmed) > 0 {
		return string(trimmed)
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "upstream request failed"
}

// rawMessage renders a JSON value as a message: strings as-is, other
// values compacted.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

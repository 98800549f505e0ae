package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/textproto"
	"slices"
	"strconv"
	"strings"

	"recruit-gateway/internal/model"
	"recruit-gateway/internal/route"
)

// transcode re-encodes the inbound body for the upstream. It returns a nil
// body and empty content type for bodyless routes.
func transcode(b model.Body, spec *route.Spec) ([]byte, string, error) {
	kind := spec.Kind()
	switch body := b.(type) {
	case nil, model.NoBody:
		if kind != route.BodyNone {
			return nil, "", bodyMismatch(spec, route.BodyNone)
		}
		return nil, "", nil
	case model.JSONBody:
		if kind != route.BodyJSON {
			return nil, "", bodyMismatch(spec, route.BodyJSON)
		}
		data, err := transcodeJSON(body.Raw, spec)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	case model.MultipartBody:
		if kind != route.BodyMultipart {
			return nil, "", bodyMismatch(spec, route.BodyMultipart)
		}
		return transcodeMultipart(body.Form, spec)
	default:
		return nil, "", &LocalProcessingError{Op: "transcode body", Err: fmt.Errorf("unsupported body %T", b)}
	}
}

func bodyMismatch(spec *route.Spec, got route.BodyKind) error {
	return &LocalProcessingError{
		Op:  "transcode body",
		Err: fmt.Errorf("route %s expects a %s body, got %s", spec.Name, spec.Kind(), got),
	}
}

func transcodeJSON(raw []byte, spec *route.Spec) ([]byte, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		return nil, &LocalProcessingError{Op: "decode request body", Err: err}
	}

	for _, field := range spec.RequiredFields {
		if v, ok := doc[field]; !ok || v == nil {
			return nil, clientInputf("missing required field: %s", field)
		}
	}

	for _, r := range spec.Renames {
		if v, ok := doc[r.From]; ok {
			delete(doc, r.From)
			doc[r.To] = v
		}
	}
	for k, v := range spec.Inject {
		doc[k] = v
	}

	data, err := encodeJSON(doc)
	if err != nil {
		return nil, &LocalProcessingError{Op: "encode request body", Err: err}
	}
	return data, nil
}

// decodeObject parses a single JSON object, keeping numbers as json.Number
// so they are re-emitted unchanged.
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty body")
		}
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("body must be a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return doc, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func transcodeMultipart(form *multipart.Form, spec *route.Spec) ([]byte, string, error) {
	values := make(map[string][]string)
	files := make(map[string][]*multipart.FileHeader)
	if form != nil {
		maps.Copy(values, form.Value)
		maps.Copy(files, form.File)
	}

	for _, r := range spec.Renames {
		if v, ok := values[r.From]; ok {
			delete(values, r.From)
			values[r.To] = v
		}
		if f, ok := files[r.From]; ok {
			delete(files, r.From)
			files[r.To] = f
		}
	}

	for _, d := range spec.Derive {
		v, ok, err := derive(values, d)
		if err != nil {
			return nil, "", err
		}
		if ok {
			values[d.To] = []string{v}
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range slices.Sorted(maps.Keys(values)) {
		for _, v := range values[name] {
			if err := w.WriteField(name, v); err != nil {
				return nil, "", &LocalProcessingError{Op: "encode multipart body", Err: err}
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(files)) {
		for _, fh := range files[name] {
			if err := writeFilePart(w, name, fh); err != nil {
				return nil, "", &LocalProcessingError{Op: "encode multipart body", Err: err}
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", &LocalProcessingError{Op: "encode multipart body", Err: err}
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// derive computes the numeric value of d from the first value of d.From,
// falling back to d.Default when the field is absent or blank. It reports
// false when there is nothing to emit.
func derive(values map[string][]string, d route.Derivation) (string, bool, error) {
	raw := ""
	if vs := values[d.From]; len(vs) > 0 {
		raw = strings.TrimSpace(vs[0])
	}
	if raw == "" {
		raw = d.Default
	}
	if raw == "" {
		return "", false, nil
	}

	switch d.Kind {
	case route.DeriveInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", false, clientInputf("invalid %s: %q is not an integer", d.From, raw)
		}
		return strconv.FormatInt(n, 10), true, nil
	case route.DeriveFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", false, clientInputf("invalid %s: %q is not a number", d.From, raw)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true, nil
	default:
		return "", false, &LocalProcessingError{Op: "derive field", Err: fmt.Errorf("unknown kind %q", d.Kind)}
	}
}

func writeFilePart(w *multipart.Writer, name string, fh *multipart.FileHeader) error {
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(fh.Filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", fh.Filename, err)
	}
	return nil
}

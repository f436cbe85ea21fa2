package toolexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// builtRequest is a resolved outbound request before it is sent
type builtRequest struct {
	method  string
	url     string
	headers map[string]string
	body    io.Reader
}

// resolveURL runs only the descriptor's URL strategy
func resolveURL(d *Descriptor, params map[string]interface{}) (string, error) {
	rawURL, err := d.Request.URL(params)
	if err != nil {
		return "", fmt.Errorf("failed to build url for %s: %w", d.ID, err)
	}
	return rawURL, nil
}

// buildRequest runs the descriptor's request strategies against params
func buildRequest(d *Descriptor, params map[string]interface{}) (*builtRequest, error) {
	rawURL, err := resolveURL(d, params)
	if err != nil {
		return nil, err
	}
	return buildRequestAt(d, params, rawURL)
}

// buildRequestAt runs the method, header and body strategies for an already resolved url
func buildRequestAt(d *Descriptor, params map[string]interface{}, rawURL string) (*builtRequest, error) {
	var err error
	method := http.MethodGet
	if d.Request.Method != nil {
		if m := strings.ToUpper(strings.TrimSpace(d.Request.Method(params))); m != "" {
			method = m
		}
	}

	headers := map[string]string{}
	if d.Request.Headers != nil {
		for k, v := range d.Request.Headers(params) {
			headers[k] = v
		}
	}

	var body interface{}
	if d.Request.Body != nil {
		body, err = d.Request.Body(params)
		if err != nil {
			return nil, fmt.Errorf("failed to build body for %s: %w", d.ID, err)
		}
	}

	reader, err := encodeBody(body, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body for %s: %w", d.ID, err)
	}

	return &builtRequest{method: method, url: rawURL, headers: headers, body: reader}, nil
}

// httpRequest materializes the request against baseURL for relative URLs
func (b *builtRequest) httpRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	target := b.url
	if strings.HasPrefix(target, "/") {
		target = strings.TrimRight(baseURL, "/") + target
	}

	req, err := http.NewRequestWithContext(ctx, b.method, target, b.body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func headerValue(headers map[string]string, name string) (string, string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", "", false
}

// encodeBody serializes body and settles the content type:
// multipart bodies carry the writer's boundary type and never an explicit one,
// url-encoded bodies become key=value pairs, and any other body defaults to JSON.
func encodeBody(body interface{}, headers map[string]string) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}

	if form, ok := body.(FormData); ok {
		if key, _, ok := headerValue(headers, "Content-Type"); ok {
			delete(headers, key)
		}
		buf, contentType, err := encodeMultipart(form)
		if err != nil {
			return nil, err
		}
		headers["Content-Type"] = contentType
		return buf, nil
	}

	_, contentType, explicit := headerValue(headers, "Content-Type")
	if !explicit {
		headers["Content-Type"] = contentTypeJSON
	}

	switch val := body.(type) {
	case string:
		return strings.NewReader(val), nil
	case []byte:
		return bytes.NewReader(val), nil
	}

	if explicit && strings.Contains(strings.ToLower(contentType), contentTypeForm) {
		if values, ok := formValues(body); ok {
			return strings.NewReader(encodeForm(values)), nil
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// formValues flattens any string-keyed map into form values. url.Values keeps
// every value of a repeated key.
func formValues(body interface{}) (url.Values, bool) {
	switch val := body.(type) {
	case url.Values:
		return val, true
	case map[string][]string:
		return url.Values(val), true
	case map[string]string:
		values := make(url.Values, len(val))
		for k, v := range val {
			values.Set(k, v)
		}
		return values, true
	}

	rv := reflect.ValueOf(body)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	values := make(url.Values, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		values.Set(iter.Key().String(), formValue(iter.Value().Interface()))
	}
	return values, true
}

// encodeForm joins percent-encoded key=value pairs with & in key order
func encodeForm(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		vs := values[k]
		if len(vs) == 0 {
			pairs = append(pairs, percentEncode(k)+"=")
			continue
		}
		for _, v := range vs {
			pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
		}
	}
	return strings.Join(pairs, "&")
}

func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func formValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func encodeMultipart(form FormData) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch val := form[key].(type) {
		case FormFile:
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, key, val.Name))
			contentType := val.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			h.Set("Content-Type", contentType)
			part, err := writer.CreatePart(h)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(val.Data); err != nil {
				return nil, "", err
			}
		default:
			if err := writer.WriteField(key, formValue(val)); err != nil {
				return nil, "", err
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf, writer.FormDataContentType(), nil
}

package catalog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/tidwall/gjson"
)

var funcs = template.FuncMap{
	"json":    toJSON,
	"default": defaultValue,
	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"query":   url.QueryEscape,
	"path":    pathEscape,
	"join":    join,
}

func toJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// defaultValue returns def when v is nil or an empty string
func defaultValue(def, v interface{}) interface{} {
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok && s == "" {
		return def
	}
	return v
}

func pathEscape(v interface{}) string {
	return url.PathEscape(fmt.Sprint(v))
}

func join(sep string, v interface{}) string {
	items, ok := v.([]interface{})
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprint(item))
	}
	return strings.Join(parts, sep)
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid %s template: %w", name, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// templateData exposes declared parameters that were not supplied as empty
// strings so templates never print "<no value>"
func templateData(params map[string]interface{}, declared []ParamSpec) map[string]interface{} {
	data := make(map[string]interface{}, len(params)+len(declared))
	for _, p := range declared {
		data[p.Name] = ""
	}
	for k, v := range params {
		if v != nil {
			data[k] = v
		}
	}
	return data
}

type compiledField struct {
	name  string
	value *template.Template
	file  string
}

func compileFields(kind string, specs []FieldSpec) ([]compiledField, error) {
	fields := make([]compiledField, 0, len(specs))
	for _, f := range specs {
		cf := compiledField{name: f.Name, file: f.File}
		if f.File == "" {
			tmpl, err := parse(kind+" "+f.Name, f.Value)
			if err != nil {
				return nil, err
			}
			cf.value = tmpl
		}
		fields = append(fields, cf)
	}
	return fields, nil
}

// compileRequest parses every request template once and returns strategies
// that render them per invocation
func compileRequest(id string, req RequestTemplate, format string, declared []ParamSpec) (toolexecutor.RequestSpec, error) {
	urlTmpl, err := parse("url", req.URL)
	if err != nil {
		return toolexecutor.RequestSpec{}, err
	}

	method := req.Method
	if method == "" {
		method = defaultMethod(req, format)
	}
	methodTmpl, err := parse("method", method)
	if err != nil {
		return toolexecutor.RequestSpec{}, err
	}

	headerNames := make([]string, 0, len(req.Headers))
	headerTmpls := make(map[string]*template.Template, len(req.Headers))
	for name, value := range req.Headers {
		tmpl, err := parse("header "+name, value)
		if err != nil {
			return toolexecutor.RequestSpec{}, err
		}
		headerNames = append(headerNames, name)
		headerTmpls[name] = tmpl
	}
	sort.Strings(headerNames)

	var bodyTmpl *template.Template
	if req.Body != "" {
		if bodyTmpl, err = parse("body", req.Body); err != nil {
			return toolexecutor.RequestSpec{}, err
		}
	}

	fields, err := compileFields("field", req.Fields)
	if err != nil {
		return toolexecutor.RequestSpec{}, err
	}

	spec := toolexecutor.RequestSpec{
		InternalRoute: req.Internal,
		URL: func(params map[string]interface{}) (string, error) {
			rendered, err := render(urlTmpl, templateData(params, declared))
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(rendered), nil
		},
		Method: func(params map[string]interface{}) string {
			rendered, err := render(methodTmpl, templateData(params, declared))
			if err != nil {
				return ""
			}
			return rendered
		},
		Headers: func(params map[string]interface{}) map[string]string {
			data := templateData(params, declared)
			headers := make(map[string]string, len(headerNames)+1)
			for _, name := range headerNames {
				value, err := render(headerTmpls[name], data)
				if err != nil || strings.TrimSpace(value) == "" {
					continue
				}
				headers[name] = value
			}
			if format == FormatForm && !hasHeader(headers, "Content-Type") {
				headers["Content-Type"] = "application/x-www-form-urlencoded"
			}
			return headers
		},
	}

	switch format {
	case FormatJSON, FormatRaw:
		if bodyTmpl != nil {
			spec.Body = func(params map[string]interface{}) (interface{}, error) {
				rendered, err := render(bodyTmpl, templateData(params, declared))
				if err != nil {
					return nil, err
				}
				if format == FormatJSON && !json.Valid([]byte(rendered)) {
					return nil, fmt.Errorf("tool %s rendered a body that is not valid JSON", id)
				}
				return rendered, nil
			}
		}
	case FormatForm:
		spec.Body = func(params map[string]interface{}) (interface{}, error) {
			data := templateData(params, declared)
			values := make(map[string]interface{}, len(fields))
			for _, f := range fields {
				if f.value == nil {
					continue
				}
				rendered, err := render(f.value, data)
				if err != nil {
					return nil, err
				}
				values[f.name] = rendered
			}
			return values, nil
		}
	case FormatMultipart:
		spec.Body = func(params map[string]interface{}) (interface{}, error) {
			data := templateData(params, declared)
			form := toolexecutor.FormData{}
			for _, f := range fields {
				if f.file != "" {
					raw, ok := params[f.file]
					if !ok || raw == nil {
						continue
					}
					file, err := fileFromParam(raw)
					if err != nil {
						return nil, fmt.Errorf("field %s: %w", f.name, err)
					}
					form[f.name] = file
					continue
				}
				rendered, err := render(f.value, data)
				if err != nil {
					return nil, err
				}
				form[f.name] = rendered
			}
			return form, nil
		}
	default:
		return toolexecutor.RequestSpec{}, fmt.Errorf("unknown body format %s", format)
	}

	return spec, nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// fileFromParam reads a file object {name, data (base64) | content, mimeType}
func fileFromParam(raw interface{}) (toolexecutor.FormFile, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return toolexecutor.FormFile{}, fmt.Errorf("file parameter must be an object")
	}

	file := toolexecutor.FormFile{}
	file.Name, _ = obj["name"].(string)
	if file.Name == "" {
		file.Name = "file"
	}
	file.ContentType, _ = obj["mimeType"].(string)

	if data, ok := obj["data"].(string); ok {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return toolexecutor.FormFile{}, fmt.Errorf("file data is not valid base64: %w", err)
		}
		file.Data = decoded
		return file, nil
	}
	if content, ok := obj["content"].(string); ok {
		file.Data = []byte(content)
		return file, nil
	}
	return toolexecutor.FormFile{}, fmt.Errorf("file parameter needs data or content")
}

// outputPathTransformer selects the success output with a gjson path
func outputPathTransformer(path string) toolexecutor.ResponseTransformer {
	return func(_ context.Context, resp *toolexecutor.Response, _ map[string]interface{}) (toolexecutor.ToolResult, error) {
		if !gjson.ValidBytes(resp.Body) {
			return toolexecutor.ToolResult{}, fmt.Errorf("response is not valid JSON")
		}
		result := gjson.GetBytes(resp.Body, path)
		if !result.Exists() {
			return toolexecutor.ToolResult{}, fmt.Errorf("output path %s not found in response", path)
		}
		return toolexecutor.ToolResult{Success: true, Output: result.Value()}, nil
	}
}

// chainHook runs spec.Tool with params rendered against {params, output}
func chainHook(id string, spec PostProcessSpec) (toolexecutor.PostProcessor, error) {
	fields, err := compileFields("post_process param", spec.Params)
	if err != nil {
		return nil, err
	}
	if spec.Tool == id {
		return nil, fmt.Errorf("post_process cannot call the tool itself")
	}

	return func(ctx context.Context, result toolexecutor.ToolResult, params map[string]interface{}, exec toolexecutor.Executor) (toolexecutor.ToolResult, error) {
		data := map[string]interface{}{"params": params, "output": result.Output}

		next := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if f.value == nil {
				continue
			}
			rendered, err := render(f.value, data)
			if err != nil {
				return result, err
			}
			next[f.name] = rendered
		}

		sub := exec.Execute(ctx, toolexecutor.Request{
			ToolID:          spec.Tool,
			Params:          next,
			SkipPostProcess: true,
			Context:         toolexecutor.ExecContextFromContext(ctx),
		})
		if !sub.Success {
			return result, fmt.Errorf("post-process tool %s failed: %s", spec.Tool, sub.Error)
		}

		output, ok := result.Output.(map[string]interface{})
		if !ok {
			output = map[string]interface{}{"result": result.Output}
		}
		output[spec.MergeAs] = sub.Output
		result.Output = output
		return result, nil
	}, nil
}

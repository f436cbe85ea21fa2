// Package catalog loads built-in tool descriptors declared as data.
//
// A catalog file (YAML or JSON) lists tools under a top-level "tools" key.
// Request fields are Go templates rendered against the parameter map, e.g.
//
//	tools:
//	  - id: github_repo
//	    name: GitHub Repository
//	    params:
//	      - {name: owner, type: string, required: true}
//	      - {name: repo, type: string, required: true}
//	      - {name: accessToken, type: string, visibility: hidden}
//	    request:
//	      url: "https://api.github.com/repos/{{ .owner | path }}/{{ .repo | path }}"
//	      headers:
//	        Authorization: "Bearer {{ .accessToken }}"
//	    output_path: "full_name"
//
// The http_request tool is always part of the catalog.
package catalog

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
)

// Body formats
const (
	FormatJSON      = "json"
	FormatRaw       = "raw"
	FormatForm      = "form"
	FormatMultipart = "multipart"
)

// File is a decoded catalog document
type File struct {
	Tools []ToolSpec `mapstructure:"tools"`
}

// ToolSpec declares one built-in tool
type ToolSpec struct {
	ID            string           `mapstructure:"id"`
	Name          string           `mapstructure:"name"`
	Version       string           `mapstructure:"version"`
	Description   string           `mapstructure:"description"`
	RequiresOAuth bool             `mapstructure:"requires_oauth"`
	Params        []ParamSpec      `mapstructure:"params"`
	Request       RequestTemplate  `mapstructure:"request"`
	OutputPath    string           `mapstructure:"output_path"`
	FileOutputs   []string         `mapstructure:"file_outputs"`
	PostProcess   *PostProcessSpec `mapstructure:"post_process"`
}

// ParamSpec declares one tool parameter
type ParamSpec struct {
	Name        string      `mapstructure:"name"`
	Type        string      `mapstructure:"type"`
	Required    bool        `mapstructure:"required"`
	Visibility  string      `mapstructure:"visibility"`
	Description string      `mapstructure:"description"`
	Default     interface{} `mapstructure:"default"`
}

// RequestTemplate holds the templates a request is rendered from
type RequestTemplate struct {
	URL        string            `mapstructure:"url"`
	Method     string            `mapstructure:"method"`
	Headers    map[string]string `mapstructure:"headers"`
	Body       string            `mapstructure:"body"`
	BodyFormat string            `mapstructure:"body_format"`
	Fields     []FieldSpec       `mapstructure:"fields"`
	Internal   bool              `mapstructure:"internal"`
}

// FieldSpec is one form or multipart field. File names the parameter that
// holds a file object for multipart uploads.
type FieldSpec struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
	File  string `mapstructure:"file"`
}

// PostProcessSpec chains a second tool after a successful call and merges its
// output into the first result under MergeAs
type PostProcessSpec struct {
	Tool    string      `mapstructure:"tool"`
	MergeAs string      `mapstructure:"merge_as"`
	Params  []FieldSpec `mapstructure:"params"`
}

// Loader reads catalog files into descriptors
type Loader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewLoader creates a catalog loader
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:       logger.With().Str("component", "catalog").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(Schema),
	}
}

// Load reads the catalog at path and returns its descriptors after the
// built-in ones. An empty path yields the built-ins only.
func (l *Loader) Load(path string) ([]*toolexecutor.Descriptor, error) {
	descriptors := []*toolexecutor.Descriptor{HTTPRequestTool()}
	if path == "" {
		return descriptors, nil
	}

	file, err := l.readFile(path)
	if err != nil {
		return nil, err
	}

	for _, spec := range file.Tools {
		d, err := Compile(spec)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", spec.ID, err)
		}
		descriptors = append(descriptors, d)
	}

	l.logger.Info().
		Str("path", path).
		Int("tools", len(file.Tools)).
		Msg("Loaded tool catalog")

	return descriptors, nil
}

// DescriptorLoader adapts Load for toolexecutor.NewRegistry
func (l *Loader) DescriptorLoader(path string) toolexecutor.DescriptorLoader {
	return func() ([]*toolexecutor.Descriptor, error) {
		return l.Load(path)
	}
}

func (l *Loader) readFile(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	if err := l.validateSchema(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("catalog schema validation failed: %w", err)
	}

	var file File
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &file, nil
}

// validateSchema validates the decoded document against Schema
func (l *Loader) validateSchema(doc map[string]interface{}) error {
	result, err := gojsonschema.Validate(l.schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Compile turns a tool spec into a descriptor
func Compile(spec ToolSpec) (*toolexecutor.Descriptor, error) {
	format := spec.Request.BodyFormat
	if format == "" {
		format = FormatJSON
	}

	req, err := compileRequest(spec.ID, spec.Request, format, spec.Params)
	if err != nil {
		return nil, err
	}

	d := &toolexecutor.Descriptor{
		ID:            spec.ID,
		Name:          spec.Name,
		Version:       spec.Version,
		Description:   spec.Description,
		Parameters:    convertParams(spec.Params),
		Request:       req,
		RequiresOAuth: spec.RequiresOAuth,
		FileOutputs:   spec.FileOutputs,
	}
	if d.Version == "" {
		d.Version = "1.0.0"
	}

	if spec.OutputPath != "" {
		d.TransformResponse = outputPathTransformer(spec.OutputPath)
	}

	if spec.PostProcess != nil {
		hook, err := chainHook(spec.ID, *spec.PostProcess)
		if err != nil {
			return nil, err
		}
		d.PostProcess = hook
	}

	return d, nil
}

func convertParams(specs []ParamSpec) []toolexecutor.Parameter {
	params := make([]toolexecutor.Parameter, 0, len(specs))
	for _, p := range specs {
		params = append(params, toolexecutor.Parameter{
			Name:        p.Name,
			Type:        p.Type,
			Required:    p.Required,
			Visibility:  toolexecutor.Visibility(p.Visibility),
			Description: p.Description,
			Default:     p.Default,
		})
	}
	return params
}

// defaultMethod picks POST for requests that carry a body
func defaultMethod(req RequestTemplate, format string) string {
	if req.Body != "" || len(req.Fields) > 0 || format == FormatForm || format == FormatMultipart {
		return http.MethodPost
	}
	return http.MethodGet
}

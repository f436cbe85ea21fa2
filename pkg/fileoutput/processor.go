// Package fileoutput persists files produced by tools and replaces them in the
// tool output with references.
package fileoutput

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/harun/toolgate/pkg/toolexecutor"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// unscopedWorkflow names the directory for files produced outside a workflow
const unscopedWorkflow = "_"

// FileRef replaces a produced file in the tool output
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Key      string `json:"key"`
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url,omitempty"`
}

// Config configures a Processor
type Config struct {
	// Fs is the storage root, the OS filesystem under Dir when nil
	Fs afero.Fs
	// Dir is used only when Fs is nil
	Dir string
	// PublicBaseURL prefixes file keys to build download URLs
	PublicBaseURL string
	Logger        zerolog.Logger
}

// Processor writes declared file outputs to storage
type Processor struct {
	fs            afero.Fs
	publicBaseURL string
	logger        zerolog.Logger
}

// NewProcessor creates a Processor
func NewProcessor(cfg Config) (*Processor, error) {
	fs := cfg.Fs
	if fs == nil {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file output directory is required")
		}
		osFs := afero.NewOsFs()
		if err := osFs.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create file output directory: %w", err)
		}
		fs = afero.NewBasePathFs(osFs, cfg.Dir)
	}

	return &Processor{
		fs:            fs,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        cfg.Logger.With().Str("component", "file_output").Logger(),
	}, nil
}

// FileSystem exposes stored files for download handlers
func (p *Processor) FileSystem() http.FileSystem {
	return afero.NewHttpFs(p.fs)
}

// Process replaces every declared file output field with file references.
// Fields that are absent or already references are left untouched.
func (p *Processor) Process(ctx context.Context, d *toolexecutor.Descriptor, output interface{}, execCtx *toolexecutor.ExecutionContext) (interface{}, error) {
	if execCtx == nil || execCtx.WorkspaceID == "" {
		return nil, fmt.Errorf("workspace id is required to store files for %s", d.ID)
	}

	fields, ok := output.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("output of %s is not an object", d.ID)
	}

	for _, field := range d.FileOutputs {
		raw, ok := fields[field]
		if !ok || raw == nil {
			continue
		}

		switch val := raw.(type) {
		case map[string]interface{}:
			ref, err := p.store(ctx, execCtx, val)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			fields[field] = ref
		case []interface{}:
			refs := make([]interface{}, 0, len(val))
			for i, item := range val {
				obj, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("field %s[%d] is not a file object", field, i)
				}
				ref, err := p.store(ctx, execCtx, obj)
				if err != nil {
					return nil, fmt.Errorf("field %s[%d]: %w", field, i, err)
				}
				refs = append(refs, ref)
			}
			fields[field] = refs
		default:
			return nil, fmt.Errorf("field %s is not a file object", field)
		}
	}

	return fields, nil
}

// store writes one file object and returns its reference
func (p *Processor) store(ctx context.Context, execCtx *toolexecutor.ExecutionContext, obj map[string]interface{}) (FileRef, error) {
	if err := ctx.Err(); err != nil {
		return FileRef{}, err
	}

	data, err := fileData(obj)
	if err != nil {
		return FileRef{}, err
	}

	name := sanitizeName(obj["name"])
	id, err := gonanoid.New()
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to generate file id: %w", err)
	}

	workflow := execCtx.WorkflowID
	if workflow == "" {
		workflow = unscopedWorkflow
	}
	dir := path.Join(sanitizeSegment(execCtx.WorkspaceID), sanitizeSegment(workflow))
	key := path.Join(dir, id+"-"+name)

	if err := p.fs.MkdirAll("/"+dir, 0755); err != nil {
		return FileRef{}, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(p.fs, "/"+key, data, 0644); err != nil {
		return FileRef{}, fmt.Errorf("failed to write file: %w", err)
	}

	ref := FileRef{
		ID:       id,
		Name:     name,
		Key:      key,
		Size:     len(data),
		MimeType: mimeType(obj, name, data),
	}
	if p.publicBaseURL != "" {
		ref.URL = p.publicBaseURL + "/" + key
	}

	p.logger.Debug().
		Str("key", key).
		Int("size", ref.Size).
		Str("workspace_id", execCtx.WorkspaceID).
		Msg("Stored tool output file")

	return ref, nil
}

// fileData decodes base64 data, falling back to text content
func fileData(obj map[string]interface{}) ([]byte, error) {
	if encoded, ok := obj["data"].(string); ok {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("file data is not valid base64: %w", err)
		}
		return data, nil
	}
	if content, ok := obj["content"].(string); ok {
		return []byte(content), nil
	}
	return nil, fmt.Errorf("file object needs data or content")
}

func mimeType(obj map[string]interface{}, name string, data []byte) string {
	if declared, ok := obj["mimeType"].(string); ok && declared != "" {
		return declared
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

func sanitizeName(raw interface{}) string {
	name, _ := raw.(string)
	name = sanitizeSegment(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == unscopedWorkflow {
		return "file"
	}
	return name
}

// sanitizeSegment keeps a path segment from escaping its directory
func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return unscopedWorkflow
	}
	return s
}

// Package docgen implements the DOCUMENT_GENERATION step, rendering a named
// template into one or more output formats through an injected renderer.
package docgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Document is one rendered artifact returned by the renderer.
type Document struct {
	TemplateID string
	Format     string
	Location   string
}

// Renderer produces a document from a template and the execution variables.
type Renderer interface {
	Render(ctx context.Context, templateID, format string, variables map[string]any) (Document, error)
}

// LogRenderer fabricates document references without producing files. It is
// the default renderer for deployments without a document service.
type LogRenderer struct {
	logger *slog.Logger
}

// NewLogRenderer creates a log-only renderer.
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger.With("module", "docgen_log_renderer")}
}

// Render logs the request and returns a synthetic document reference.
func (r *LogRenderer) Render(ctx context.Context, templateID, format string, variables map[string]any) (Document, error) {
	r.logger.InfoContext(ctx, "Document render recorded to log",
		"template_id", templateID,
		"format", format,
		"variables", len(variables))

	return Document{
		TemplateID: templateID,
		Format:     format,
		Location:   fmt.Sprintf("memory://documents/%s.%s", templateID, format),
	}, nil
}

// Handler renders a template into each configured output format.
type Handler struct {
	templateID    string
	outputFormats []string
	renderer      Renderer
}

// Execute renders every requested format and returns the document references.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "docgen_step")

	documents := make([]map[string]any, 0, len(h.outputFormats))

	for _, format := range h.outputFormats {
		doc, err := h.renderer.Render(ctx, h.templateID, format, input.Variables)
		if err != nil {
			return nil, protocol.NewStepError("DOCUMENT_GENERATION_FAILED",
				fmt.Sprintf("failed to render template %s as %s: %v", h.templateID, format, err), true)
		}

		documents = append(documents, map[string]any{
			"template_id": doc.TemplateID,
			"format":      doc.Format,
			"location":    doc.Location,
		})
	}

	logger.InfoContext(ctx, "Documents generated",
		"template_id", h.templateID,
		"formats", h.outputFormats)

	return map[string]any{
		"template_id":  h.templateID,
		"documents":    documents,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Factory creates document generation handlers.
type Factory struct {
	renderer Renderer
}

// NewFactory creates the DOCUMENT_GENERATION factory.
func NewFactory(renderer Renderer) *Factory {
	return &Factory{renderer: renderer}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeDocumentGeneration
}

// ConfigSchema returns the config schema for document generation steps.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"templateId": {"type": "string", "minLength": 1},
			"outputFormat": {"type": "array", "items": {"type": "string"}, "minItems": 1}
		},
		"required": ["templateId", "outputFormat"]
	}`
}

// Create builds a handler from the step config.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	templateID, ok := config["templateId"].(string)
	if !ok || templateID == "" {
		return nil, fmt.Errorf("missing or invalid 'templateId' in configuration")
	}

	rawFormats, ok := config["outputFormat"].([]any)
	if !ok || len(rawFormats) == 0 {
		return nil, fmt.Errorf("missing or invalid 'outputFormat' in configuration")
	}

	formats := make([]string, 0, len(rawFormats))

	for _, item := range rawFormats {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("invalid output format %v in configuration", item)
		}

		formats = append(formats, s)
	}

	return &Handler{
		templateID:    templateID,
		outputFormats: formats,
		renderer:      f.renderer,
	}, nil
}

// Package tool exposes extraction as MCP tools.
package tool

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/ingest"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

// Processor runs one extraction job. *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error)
}

// HealthChecker probes every strategy. *registry.Registry satisfies it.
type HealthChecker interface {
	HealthCheckAll(ctx context.Context) map[constants.Strategy]bool
}

// Tools binds the MCP handlers to the extraction pipeline.
type Tools struct {
	Proc     Processor
	Health   HealthChecker
	MaxBytes int64
}

// MetadataExtractContent describes the extract_content tool.
var MetadataExtractContent = &mcp.Tool{
	Name: "extract_content",
	Description: "Extract plain text and structured metadata from a file. " +
		"Provide either base64 content or a local path. The strategy is detected from the " +
		"MIME type and filename unless one is given. Long text is summarized before it is returned; " +
		"was_summarized and original_token_count report when that happened.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content_base64": map[string]interface{}{
				"type":        "string",
				"description": "File content, base64 encoded. Required unless path is set.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Local file path to read instead of content_base64.",
			},
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "Original filename; used for detection when content_base64 is given.",
			},
			"mime_type": map[string]interface{}{
				"type":        "string",
				"description": "MIME type hint.",
			},
			"strategy": map[string]interface{}{
				"type":        "string",
				"description": "Force a strategy instead of detecting one.",
				"enum":        strategyNames(),
			},
			"options": map[string]interface{}{
				"type":        "object",
				"description": "Per-job options document (language, dpi, prompt, keyframe_strategy, ...).",
			},
		},
	},
}

// InputExtractContent is the input for the ExtractContent tool.
type InputExtractContent struct {
	ContentBase64 string         `json:"content_base64"`
	Path          string         `json:"path"`
	Filename      string         `json:"filename"`
	MIMEType      string         `json:"mime_type"`
	Strategy      string         `json:"strategy"`
	Options       map[string]any `json:"options"`
}

// OutputExtractContent is the output for the ExtractContent tool.
type OutputExtractContent struct {
	JobID              string              `json:"job_id"`
	Strategy           string              `json:"strategy"`
	ExtractedText      string              `json:"extracted_text"`
	AIDescription      string              `json:"ai_description,omitempty"`
	Metadata           map[string]any      `json:"metadata"`
	WasSummarized      bool                `json:"was_summarized"`
	OriginalTokenCount int                 `json:"original_token_count,omitempty"`
	SubResults         []extract.SubResult `json:"sub_results,omitempty"`
	Cached             bool                `json:"cached"`
}

// ExtractContent runs one extraction job synchronously.
func (t *Tools) ExtractContent(ctx context.Context, _ *mcp.CallToolRequest, input InputExtractContent) (*mcp.CallToolResult, OutputExtractContent, error) {
	job, err := t.jobFrom(input)
	if err != nil {
		return nil, OutputExtractContent{}, err
	}
	out, err := t.Proc.Process(ctx, job)
	if err != nil {
		return nil, OutputExtractContent{}, fmt.Errorf("%s: %w", common.KindOf(err), err)
	}
	res := out.Result
	o := OutputExtractContent{
		JobID:         out.JobID,
		Strategy:      string(out.Strategy),
		ExtractedText: res.ExtractedText,
		AIDescription: res.AIDescription,
		Metadata:      res.Metadata,
		WasSummarized: res.WasSummarized,
		SubResults:    res.SubResults,
		Cached:        out.Cached,
	}
	if res.OriginalTokenCount != nil {
		o.OriginalTokenCount = *res.OriginalTokenCount
	}
	return nil, o, nil
}

func (t *Tools) jobFrom(input InputExtractContent) (pipeline.Job, error) {
	job := pipeline.Job{
		Filename: input.Filename,
		MIME:     input.MIMEType,
		Strategy: input.Strategy,
		Options:  extract.Options(input.Options),
	}
	switch {
	case input.ContentBase64 != "" && input.Path != "":
		return job, common.InvalidInputf("set only one of content_base64 and path")
	case input.ContentBase64 != "":
		data, err := base64.StdEncoding.DecodeString(input.ContentBase64)
		if err != nil {
			return job, common.InvalidInput("content_base64 is not valid base64", err)
		}
		job.Data = data
	case input.Path != "":
		info, err := os.Stat(input.Path)
		if err != nil {
			return job, common.InvalidInput("cannot read path", err)
		}
		if t.MaxBytes > 0 && info.Size() > t.MaxBytes {
			return job, common.InvalidInputf("%s is %d bytes; limit is %d", input.Path, info.Size(), t.MaxBytes)
		}
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return job, common.InvalidInput("cannot read path", err)
		}
		job.Data = data
		if job.Filename == "" {
			job.Filename = filepath.Base(input.Path)
		}
		if job.MIME == "" {
			job.MIME = ingest.MIMEOf(input.Path)
		}
	default:
		return job, common.InvalidInputf("content_base64 or path is required")
	}
	return job, nil
}

// MetadataExtractionHealth describes the extraction_health tool.
var MetadataExtractionHealth = &mcp.Tool{
	Name:        "extraction_health",
	Description: "Report which extraction strategies are currently available (tools installed, AI backends reachable).",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	},
}

type InputExtractionHealth struct{}

type OutputExtractionHealth struct {
	Strategies map[string]bool `json:"strategies"`
	Available  []string        `json:"available"`
}

func (t *Tools) ExtractionHealth(ctx context.Context, _ *mcp.CallToolRequest, _ InputExtractionHealth) (*mcp.CallToolResult, OutputExtractionHealth, error) {
	m := t.Health.HealthCheckAll(ctx)
	out := OutputExtractionHealth{Strategies: make(map[string]bool, len(m)), Available: []string{}}
	for _, s := range constants.AllStrategies() {
		out.Strategies[string(s)] = m[s]
		if m[s] {
			out.Available = append(out.Available, string(s))
		}
	}
	return nil, out, nil
}

// NewServer returns an MCP server with both tools registered.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "content-extractor", Version: version}, nil)
	mcp.AddTool(server, MetadataExtractContent, t.ExtractContent)
	mcp.AddTool(server, MetadataExtractionHealth, t.ExtractionHealth)
	return server
}

func strategyNames() []string {
	var out []string
	for _, s := range constants.AllStrategies() {
		out = append(out, string(s))
	}
	return out
}

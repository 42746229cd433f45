// Package tools exposes generation operations as MCP tools for callers with
// no browser tab, such as editor agents driving pagelens over stdio.
package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/internal/coordinator"
	"github.com/pagelens/pagelens/internal/registry"
)

// GenerationTools bundles the coordinator dependencies for the MCP surface.
// All tool requests run under the sentinel no-tab origin.
type GenerationTools struct {
	coord *coordinator.Coordinator
	reg   *registry.Registry
}

// NewGenerationTools creates the tool set.
func NewGenerationTools(coord *coordinator.Coordinator, reg *registry.Registry) *GenerationTools {
	return &GenerationTools{coord: coord, reg: reg}
}

// GenerateInput defines input for the generate tool.
type GenerateInput struct {
	Prompt         string `json:"prompt" jsonschema:"The instruction or question for the model"`
	SelectedText   string `json:"selected_text,omitempty" jsonschema:"Text the instruction applies to"`
	Task           string `json:"task,omitempty" jsonschema:"Optional task: translate, rewrite, explain"`
	TargetLanguage string `json:"target_language,omitempty" jsonschema:"Target language for translate"`
	PageContext    string `json:"page_context,omitempty" jsonschema:"Surrounding page text for context"`
}

// GenerateOutput defines output for the generate tool.
type GenerateOutput struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// SummarizeInput defines input for the summarize tool.
type SummarizeInput struct {
	PageContext string `json:"page_context" jsonschema:"The page text to summarize"`
	Length      string `json:"length,omitempty" jsonschema:"Summary length: short, medium, long (default medium)"`
}

// AbortInput defines input for the abort tool.
type AbortInput struct{}

// AbortOutput defines output for the abort tool.
type AbortOutput struct {
	Cancelled int `json:"cancelled"`
}

// Register adds the generation tools to the MCP server.
func Register(server *mcp.Server, gt *GenerationTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "generate",
		Description: `Run a free-form generation against the configured model.

Provide a prompt, optionally with selected text and page context. The task
field selects a canned instruction (translate, rewrite, explain) applied to
the selected text.`,
	}, gt.handleGenerate)

	mcp.AddTool(server, &mcp.Tool{
		Name: "summarize",
		Description: `Summarize page text at a chosen length.

Length is one of short, medium, long; medium is the default.`,
	}, gt.handleSummarize)

	mcp.AddTool(server, &mcp.Tool{
		Name: "abort",
		Description: `Cancel all in-flight generation requests issued through this tool
surface. Returns the number of requests cancelled.`,
	}, gt.handleAbort)
}

func (gt *GenerationTools) handleGenerate(ctx context.Context, req *mcp.CallToolRequest, input GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
	if input.Prompt == "" && input.Task == "" {
		return errorResult("prompt or task is required"), GenerateOutput{}, nil
	}

	out := gt.coord.Query(ctx, registry.OriginNone, coordinator.QueryRequest{
		Prompt:         input.Prompt,
		SelectedText:   input.SelectedText,
		Task:           input.Task,
		TargetLanguage: input.TargetLanguage,
		PageContext:    input.PageContext,
	})
	if !out.OK() {
		return errorResult(out.ErrorMessage()), GenerateOutput{OK: false, Error: out.ErrorMessage()}, nil
	}
	return nil, GenerateOutput{OK: true, Text: out.Text}, nil
}

func (gt *GenerationTools) handleSummarize(ctx context.Context, req *mcp.CallToolRequest, input SummarizeInput) (*mcp.CallToolResult, GenerateOutput, error) {
	if input.PageContext == "" {
		return errorResult("page_context is required"), GenerateOutput{}, nil
	}

	out := gt.coord.Summarize(ctx, registry.OriginNone, coordinator.SummarizeRequest{
		PageContext: input.PageContext,
		Length:      input.Length,
	})
	if !out.OK() {
		return errorResult(out.ErrorMessage()), GenerateOutput{OK: false, Error: out.ErrorMessage()}, nil
	}
	return nil, GenerateOutput{OK: true, Text: out.Text}, nil
}

func (gt *GenerationTools) handleAbort(ctx context.Context, req *mcp.CallToolRequest, input AbortInput) (*mcp.CallToolResult, AbortOutput, error) {
	n := gt.reg.CancelAll(registry.OriginNone)
	return nil, AbortOutput{Cancelled: n}, nil
}

// errorResult builds a tool-level error result.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %s", msg)}},
	}
}

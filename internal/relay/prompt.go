package relay

import (
	"fmt"
	"strings"
)

// generateRequest mirrors the bridge's interactive query payload.
type generateRequest struct {
	Prompt         string `json:"prompt"`
	SelectedText   string `json:"selected_text"`
	Mode           string `json:"mode"`
	Task           string `json:"task"`
	TargetLanguage string `json:"target_language"`
	PageContext    string `json:"page_context"`
}

// summarizeRequest mirrors the bridge's summarization payload.
type summarizeRequest struct {
	PageContext string `json:"page_context"`
	Length      string `json:"length"`
}

// summaryLengths maps the length knob to an instruction fragment.
var summaryLengths = map[string]string{
	"short":  "in two or three sentences",
	"medium": "in one paragraph",
	"long":   "in three detailed paragraphs",
}

// buildGeneratePrompt assembles the upstream prompt for an interactive
// query. Task and target language shape the instruction; selected text and
// page context are appended as fenced material so the model does not
// confuse them with the instruction itself.
func buildGeneratePrompt(req generateRequest) string {
	var sb strings.Builder

	switch req.Task {
	case "translate":
		lang := req.TargetLanguage
		if lang == "" {
			lang = "English"
		}
		fmt.Fprintf(&sb, "Translate the following into %s.", lang)
	case "rewrite":
		sb.WriteString("Rewrite the following to improve clarity, keeping the original meaning.")
	case "explain":
		sb.WriteString("Explain the following in plain language.")
	default:
		sb.WriteString(req.Prompt)
	}

	if req.Task != "" && req.Prompt != "" {
		sb.WriteString("\n")
		sb.WriteString(req.Prompt)
	}

	if req.SelectedText != "" {
		sb.WriteString("\n\n--- selected text ---\n")
		sb.WriteString(req.SelectedText)
	}
	if req.PageContext != "" {
		sb.WriteString("\n\n--- page context ---\n")
		sb.WriteString(req.PageContext)
	}

	return sb.String()
}

// buildSummarizePrompt assembles the upstream prompt for a page summary.
func buildSummarizePrompt(req summarizeRequest) string {
	length, ok := summaryLengths[req.Length]
	if !ok {
		length = summaryLengths["medium"]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following page %s. Cover the main points only.", length)
	sb.WriteString("\n\n--- page content ---\n")
	sb.WriteString(req.PageContext)
	return sb.String()
}

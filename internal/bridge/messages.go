package bridge

// actionMessage is the envelope for every frame an extension page sends.
// The Type field selects the action; the remaining fields are per-action
// payloads and are simply left empty when unused.
type actionMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// interactive_query
	Prompt         string `json:"prompt,omitempty"`
	SelectedText   string `json:"selected_text,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Task           string `json:"task,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`

	// interactive_query and summarize_page
	PageContext string `json:"page_context,omitempty"`

	// summarize_page
	Length string `json:"length,omitempty"`
}

// Action message types.
const (
	actionInteractiveQuery = "interactive_query"
	actionSummarizePage    = "summarize_page"
	actionAbortRequests    = "abort_requests"
	actionOriginTeardown   = "origin_teardown"
)

// reply is the direct response to one action message, correlated by ID.
// Lifecycle events travel as separate frames ("type":"event").
type reply struct {
	Type    string `json:"type"` // always "reply"
	ID      string `json:"id,omitempty"`
	OK      bool   `json:"ok"`
	Data    string `json:"data,omitempty"`    // interactive_query result
	Text    string `json:"text,omitempty"`    // summarize_page result
	Message string `json:"message,omitempty"` // abort_requests result
	Error   string `json:"error,omitempty"`
}

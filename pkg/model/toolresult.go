package model

// SearchResult is a single web search hit
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score"`
}

// Extraction is deep-extracted page content for a single URL
type Extraction struct {
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
}

// ToolResult is the structured payload every tool returns. Tools never fail
// with an error across the tool-calling boundary; failures set Error and leave
// the list fields empty.
type ToolResult struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	// Calendar generation
	FilePath    string `json:"file_path,omitempty"`
	Filename    string `json:"filename,omitempty"`
	EventsCount int    `json:"events_count,omitempty"`

	// Web search
	Results     []SearchResult `json:"results,omitempty"`
	Extractions []Extraction   `json:"extractions,omitempty"`

	Error string `json:"error,omitempty"`
}

// ErrorResult builds a result carrying only an error message
func ErrorResult(msg string) *ToolResult {
	return &ToolResult{Error: msg}
}

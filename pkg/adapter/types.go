package adapter

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallReport captures metadata about one completion call.
type CallReport struct {
	Role           string `json:"role,omitempty"`
	Adapter        string `json:"adapter"`
	Model          string `json:"model"`
	Usage          Usage  `json:"usage"`
	DurationMillis int64  `json:"duration_ms"`
	Error          string `json:"error,omitempty"`
}

// Response wraps an adapter output and optional usage data.
type Response struct {
	Content string
	Adapter string
	Model   string
	Usage   *Usage
}

func newResponse(content, adapterName, model string, usage *Usage) *Response {
	return &Response{Content: content, Adapter: adapterName, Model: model, Usage: usage}
}

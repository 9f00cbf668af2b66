package chat

// CompletionRequest is the body POSTed to the completion endpoint.
type CompletionRequest struct {
	Messages []Message `json:"messages"`
	User     string    `json:"user"`
}

// CompletionResponse carries the raw, untrimmed reply. Text is a pointer so a
// missing field can be told apart from an empty reply.
type CompletionResponse struct {
	Text *string `json:"text"`
}

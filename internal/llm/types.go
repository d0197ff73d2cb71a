package llm

import "time"

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's primary model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float64
}

// Result is the outcome of a fallback invocation.
type Result struct {
	// Text is the generated completion.
	Text string
	// Model is the identifier of the model that produced the text.
	Model string
	// FallbackUsed reports whether any model after the primary was tried.
	FallbackUsed bool
	// Duration is the wall time of the successful attempt.
	Duration time.Duration
}

// EncodeMode selects the embedding instruction prefix. E5-family models
// require asymmetric encoding of queries vs stored passages.
type EncodeMode string

const (
	// EncodeQuery marks text as a search query.
	EncodeQuery EncodeMode = "query"
	// EncodePassage marks text as an indexed passage.
	EncodePassage EncodeMode = "passage"
)

package llm

import "math"

// Chat roles understood by OpenAI-compatible servers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DeterministicTemperature is the smallest temperature that survives the
// request encoding; servers treat it as greedy decoding.
const DeterministicTemperature float32 = math.SmallestNonzeroFloat32

// Message represents a single message in a chat conversation.
// This type is used by the RAG engine and other structured message consumers.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// Zero is omitted from the request and leaves the server default in place;
	// use DeterministicTemperature for greedy decoding.
	Temperature float32
}

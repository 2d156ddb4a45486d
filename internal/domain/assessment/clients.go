package assessment

import (
	"context"
	"encoding/json"
)

// Interfaces for the injected capability providers. They are defined here,
// at the consumer, so the orchestration core never depends on a concrete
// transport; implementations live in internal/platform/modelgateway and
// tests supply fakes.

// LLMClient runs one prompt against the diagnostic language model and
// returns the salvaged JSON object from its reply. Implementations report
// unparseable output as an error; they never panic.
type LLMClient interface {
	Run(ctx context.Context, prompt string, image []byte, maxNewTokens int) (json.RawMessage, error)
}

// VisionClient classifies a chest image against a candidate label set.
type VisionClient interface {
	Analyze(ctx context.Context, image []byte, candidateLabels []string, topK int) (ImageFinding, error)
}

// Transcript is the transcriber output with optional quality hints.
type Transcript struct {
	Text     string `json:"transcript"`
	Language string `json:"language,omitempty"`
}

// Transcriber converts an audio recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// Retriever returns the top-K guideline snippets for a free-text query.
// Failures degrade to empty evidence at the call site and are never
// propagated to the caller of Run.
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]RetrievedChunk, error)
}

package modelgateway

import (
	"net/http"
	"sync"
	"time"
)

// Config holds the endpoint URLs for the model sidecars. Empty URLs leave
// the corresponding client unconstructed; callers receive nil and the
// pipeline reports the stage as unavailable.
type Config struct {
	LLMURL       string
	VisionURL    string
	ASRURL       string
	RetrieverURL string
	Timeout      time.Duration
}

// Registry constructs model clients on first use. Model sidecars can come
// up after the server; nothing is dialed at startup.
type Registry struct {
	cfg  Config
	http *http.Client

	mu        sync.Mutex
	llm       *LLMClient
	vision    *VisionClient
	asr       *ASRClient
	retriever *RetrieverClient
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Registry{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// LLM returns the text-generation client, or nil when unconfigured.
func (r *Registry) LLM() *LLMClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.llm == nil && r.cfg.LLMURL != "" {
		r.llm = NewLLMClient(r.cfg.LLMURL, r.http)
	}
	return r.llm
}

// Vision returns the image classifier client, or nil when unconfigured.
func (r *Registry) Vision() *VisionClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vision == nil && r.cfg.VisionURL != "" {
		r.vision = NewVisionClient(r.cfg.VisionURL, r.http)
	}
	return r.vision
}

// ASR returns the transcription client, or nil when unconfigured.
func (r *Registry) ASR() *ASRClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.asr == nil && r.cfg.ASRURL != "" {
		r.asr = NewASRClient(r.cfg.ASRURL, r.http)
	}
	return r.asr
}

// Retriever returns the guideline retrieval client, or nil when unconfigured.
func (r *Registry) Retriever() *RetrieverClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retriever == nil && r.cfg.RetrieverURL != "" {
		r.retriever = NewRetrieverClient(r.cfg.RetrieverURL, r.http)
	}
	return r.retriever
}

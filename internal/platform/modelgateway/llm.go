// Package modelgateway holds the HTTP clients for the model-serving
// sidecars: text generation, image classification, speech transcription,
// and guideline retrieval. Clients are lazily constructed through the
// Registry so the server starts without touching any model endpoint.
package modelgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wardlight/wardlight/pkg/jsonx"
)

// LLMClient calls the text-generation service and salvages a JSON object
// from whatever the model returns.
type LLMClient struct {
	baseURL string
	http    *http.Client
}

func NewLLMClient(baseURL string, client *http.Client) *LLMClient {
	return &LLMClient{baseURL: baseURL, http: client}
}

type generateRequest struct {
	Prompt       string `json:"prompt"`
	System       string `json:"system,omitempty"`
	ImageB64     string `json:"image_b64,omitempty"`
	MaxNewTokens int    `json:"max_new_tokens"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Run sends one generation request. The image is optional; when present it
// is inlined as base64 for the multimodal model. The response text is run
// through the JSON salvager, so prose-wrapped or trailing-comma output
// still yields a usable object.
func (c *LLMClient) Run(ctx context.Context, prompt string, image []byte, maxNewTokens int) (json.RawMessage, error) {
	reqBody := generateRequest{
		Prompt:       prompt,
		System:       "", // the system prompt travels inside the rendered prompt
		MaxNewTokens: maxNewTokens,
	}
	if len(image) > 0 {
		reqBody.ImageB64 = base64.StdEncoding.EncodeToString(image)
	}

	var resp generateResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/generate", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("llm generate: %w", err)
	}
	raw, err := jsonx.Salvage(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("llm output not parseable: %w", err)
	}
	return raw, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s: %s", resp.Status, string(respBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

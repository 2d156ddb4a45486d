package modelgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/wardlight/wardlight/internal/domain/assessment"
)

// ASRClient calls the speech-to-text service with a multipart upload.
type ASRClient struct {
	baseURL string
	http    *http.Client
}

func NewASRClient(baseURL string, client *http.Client) *ASRClient {
	return &ASRClient{baseURL: baseURL, http: client}
}

type transcribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe uploads the staged audio file and returns the transcript.
func (c *ASRClient) Transcribe(ctx context.Context, audioPath string) (assessment.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return assessment.Transcript{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return assessment.Transcript{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return assessment.Transcript{}, err
	}
	if err := writer.Close(); err != nil {
		return assessment.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", body)
	if err != nil {
		return assessment.Transcript{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return assessment.Transcript{}, fmt.Errorf("asr transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return assessment.Transcript{}, fmt.Errorf("asr transcribe: %s: %s", resp.Status, string(respBody))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return assessment.Transcript{}, fmt.Errorf("asr response: %w", err)
	}
	return assessment.Transcript{Text: out.Text, Language: out.Language}, nil
}

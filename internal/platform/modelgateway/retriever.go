package modelgateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wardlight/wardlight/internal/domain/assessment"
)

// RetrieverClient queries the guideline vector index.
type RetrieverClient struct {
	baseURL string
	http    *http.Client
}

func NewRetrieverClient(baseURL string, client *http.Client) *RetrieverClient {
	return &RetrieverClient{baseURL: baseURL, http: client}
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type queryResponse struct {
	Results []struct {
		SourceFile string   `json:"source_file"`
		Category   string   `json:"category"`
		Score      *float64 `json:"score"`
		Text       string   `json:"text"`
	} `json:"results"`
}

// Query returns the top matching guideline chunks for the composed query.
func (c *RetrieverClient) Query(ctx context.Context, text string, topK int) ([]assessment.RetrievedChunk, error) {
	req := queryRequest{Query: text, TopK: topK}

	var resp queryResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("retriever query: %w", err)
	}

	chunks := make([]assessment.RetrievedChunk, 0, len(resp.Results))
	for _, r := range resp.Results {
		chunks = append(chunks, assessment.RetrievedChunk{
			SourceFile: r.SourceFile,
			Category:   r.Category,
			Score:      r.Score,
			Text:       r.Text,
		})
	}
	return chunks, nil
}

package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jobmate/campaign-service/internal/model"
)

// HTTPRenderer calls the external rendering service, which lays out a
// structured document (PDF) and returns a durable artifact reference.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRenderer(baseURL string) *HTTPRenderer {
	return &HTTPRenderer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type renderRequest struct {
	DocType string                `json:"docType"`
	Content model.DocumentContent `json:"content"`
}

type renderResponse struct {
	ArtifactRef string `json:"artifactRef"`
}

func (r *HTTPRenderer) Render(ctx context.Context, docType string, content model.DocumentContent) (string, error) {
	body, err := json.Marshal(renderRequest{DocType: docType, Content: content})
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("renderer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("renderer returned status %d", resp.StatusCode)
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode render response: %w", err)
	}
	if out.ArtifactRef == "" {
		return "", fmt.Errorf("renderer returned empty artifact reference")
	}
	return out.ArtifactRef, nil
}

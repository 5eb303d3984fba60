package diagnose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/clusterguard/clusterguard/internal/models"
)

// HTTPEnricherConfig points at an OpenAI-compatible chat endpoint
type HTTPEnricherConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// HTTPEnricher asks a language model for root-cause narrative and
// remediation text. The pipeline imposes the deadline via context;
// the enricher itself does not retry.
type HTTPEnricher struct {
	cfg    HTTPEnricherConfig
	client *http.Client
}

// NewHTTPEnricher creates an enricher against a chat-completions API
func NewHTTPEnricher(cfg HTTPEnricherConfig) *HTTPEnricher {
	return &HTTPEnricher{cfg: cfg, client: &http.Client{}}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Enrich sends the findings and score, returns the narrative
func (e *HTTPEnricher) Enrich(ctx context.Context, findings []models.Finding, score int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a Kubernetes SRE. Given diagnostic findings, explain the likely root cause and suggest remediation steps. Be concise."},
			{Role: "user", Content: buildPrompt(findings, score)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal enrichment request: %w", err)
	}

	url := strings.TrimRight(e.cfg.Endpoint, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("enrichment request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read enrichment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("enrichment endpoint returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse enrichment response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("enrichment model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("enrichment response had no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func buildPrompt(findings []models.Finding, score int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cluster health score: %d/100\nFindings:\n", score)
	for _, f := range findings {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", strings.ToUpper(string(f.Severity)), f.Description, f.Resource)
	}
	return b.String()
}

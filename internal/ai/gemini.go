package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type GeminiProvider struct {
	BaseURL    string // e.g. https://generativelanguage.googleapis.com/v1beta/models
	APIKey     string
	Model      string
	EmbedModel string
	Client     *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateReq struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGeminiProvider(baseURL, apiKey, model string) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		EmbedModel: "text-embedding-004",
		Client:     &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("gemini: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("gemini: api key is required")
	}

	reqBody := geminiGenerateReq{}
	for _, m := range messages {
		switch m.Role {
		case "system":
			reqBody.SystemInstruction = &geminiContent{
				Role:  "system",
				Parts: []geminiPart{{Text: m.Content}},
			}
		case "assistant", "model", "ai":
			reqBody.Contents = append(reqBody.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		default:
			reqBody.Contents = append(reqBody.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}
	if len(reqBody.Contents) == 0 {
		return "", errors.New("gemini: no user content")
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	// The public API serves models under both v1beta and v1, and some model
	// names only resolve with or without a "-latest" suffix. Walk the variants
	// on 404, stop early on any other failure.
	var lastErr error
	for _, base := range p.baseVariants() {
		for _, model := range modelVariants(p.Model) {
			endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", base, model, url.QueryEscape(p.APIKey))
			reply, status, err := p.generateOnce(ctx, endpoint, b)
			if err == nil {
				return reply, nil
			}
			lastErr = err
			if status != http.StatusNotFound {
				return "", err
			}
		}
	}
	return "", lastErr
}

func (p *GeminiProvider) generateOnce(ctx context.Context, endpoint string, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", resp.StatusCode, fmt.Errorf("gemini: %s", msg)
	}

	var decoded geminiGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", resp.StatusCode, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", resp.StatusCode, errors.New(decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", resp.StatusCode, errors.New("gemini: no content in response")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, resp.StatusCode, nil
}

func (p *GeminiProvider) baseVariants() []string {
	primary := strings.TrimRight(p.BaseURL, "/")
	var fallback string
	if strings.Contains(primary, "v1beta/models") {
		fallback = strings.Replace(primary, "v1beta/models", "v1/models", 1)
	} else {
		fallback = strings.Replace(primary, "v1/models", "v1beta/models", 1)
	}
	if fallback == primary {
		return []string{primary}
	}
	return []string{primary, fallback}
}

func modelVariants(model string) []string {
	base := strings.TrimSpace(model)
	without := strings.TrimSuffix(base, "-latest")
	with := without + "-latest"

	out := make([]string, 0, 3)
	seen := map[string]bool{}
	for _, v := range []string{base, without, with} {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

type geminiEmbedReq struct {
	Content geminiContent `json:"content"`
}

type geminiEmbedResp struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	model := p.EmbedModel
	if model == "" {
		model = "text-embedding-004"
	}

	b, err := json.Marshal(geminiEmbedReq{
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s:embedContent?key=%s", p.BaseURL, model, url.QueryEscape(p.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini: embed status %d", resp.StatusCode)
	}

	var decoded geminiEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	if len(decoded.Embedding.Values) == 0 {
		return nil, errors.New("gemini: empty embedding")
	}
	return decoded.Embedding.Values, nil
}

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"converse/pkg/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	chatModel  string
	imageModel string
	httpClient *http.Client
}

// NewGeminiClient constructs a client with the provided API key and models.
func NewGeminiClient(apiKey, chatModel, imageModel string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	if strings.TrimSpace(chatModel) == "" {
		return nil, fmt.Errorf("gemini chat model required")
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		chatModel:  normalizeModel(chatModel),
		imageModel: normalizeModel(imageModel),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// GenerateChat sends the history plus the new message and returns the
// model's reply text. The persona instruction rides as the system-level
// directive and the search-augmentation tool is enabled.
func (c *GeminiClient) GenerateChat(ctx context.Context, history []domain.Turn, message, systemInstruction string) (string, error) {
	contents := make([]content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, content{
			Role:  turn.Role,
			Parts: []part{{Text: turn.Parts}},
		})
	}
	contents = append(contents, content{
		Role:  domain.RoleUser,
		Parts: []part{{Text: message}},
	})
	reqBody := generateRequest{
		Contents: contents,
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	}
	if strings.TrimSpace(systemInstruction) != "" {
		reqBody.SystemInstruction = &content{
			Parts: []part{{Text: systemInstruction}},
		}
	}
	var resp generateResponse
	if err := c.doJSON(ctx, fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.chatModel, c.apiKey), reqBody, &resp); err != nil {
		return "", err
	}
	text := resp.firstText()
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

// StylizeImage sends the prompt plus the inline input image to the image
// model and returns the generated image bytes.
func (c *GeminiClient) StylizeImage(ctx context.Context, prompt string, image []byte, mimeType string) ([]byte, error) {
	if c.imageModel == "" {
		return nil, fmt.Errorf("gemini image model not configured")
	}
	reqBody := generateRequest{
		Contents: []content{
			{
				Role: domain.RoleUser,
				Parts: []part{
					{Text: prompt},
					{InlineData: &inlineData{
						MimeType: mimeType,
						Data:     base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
	}
	var resp generateResponse
	if err := c.doJSON(ctx, fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.imageModel, c.apiKey), reqBody, &resp); err != nil {
		return nil, err
	}
	data := resp.firstInlineData()
	if data == "" {
		return nil, fmt.Errorf("no image in gemini response")
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode gemini image: %w", err)
	}
	return decoded, nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Tools             []tool    `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) firstText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

func (r generateResponse) firstInlineData() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	for _, p := range r.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData.Data
		}
	}
	return ""
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/models"
)

// prompt instructs the model to read exactly two fields off the screenshot.
// The response contract is strict so parsing stays trivial: minified JSON,
// two keys, sentinel value when a field cannot be read.
const prompt = `You are looking at a full-page screenshot of a retail product page.
Read the product's brand name and its displayed price exactly as shown.
Respond with minified JSON only, no prose, no code fences, in the form:
{"brand":"...","price":"..."}
If a value is not visible or not readable, use the string "unspecified" for it.`

// Check is the model's independent reading of the page.
type Check struct {
	Brand string `json:"brand"`
	Price string `json:"price"`
}

// unspecifiedCheck is returned on every failure path so callers never branch
// on partially-filled values.
func unspecifiedCheck() Check {
	return Check{Brand: models.Unspecified, Price: models.Unspecified}
}

// Client talks to an OpenAI-compatible chat-completions endpoint with image
// input.
type Client struct {
	cfg        config.VisionConfig
	httpClient *http.Client
}

// New creates a vision client.
func New(cfg config.VisionConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CrossCheck sends the screenshot and returns the model's brand/price
// reading. Every failure returns the sentinel pair along with the error so
// the caller can log and keep going; the cross-check is advisory, never
// load-bearing.
func (c *Client) CrossCheck(ctx context.Context, screenshotPNG []byte) (Check, error) {
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(screenshotPNG)

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			},
		}},
		MaxTokens:   200,
		Temperature: 0,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return unspecifiedCheck(), models.NewFetchError(models.ErrCodeVision, "failed to encode vision request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return unspecifiedCheck(), models.NewFetchError(models.ErrCodeVision, "failed to build vision request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unspecifiedCheck(), models.NewFetchError(models.ErrCodeVision, "vision request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return unspecifiedCheck(), models.NewFetchError(models.ErrCodeVision, "failed to read vision response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return unspecifiedCheck(), models.NewFetchError(models.ErrCodeVision, "vision returned malformed response", err)
	}
	if parsed.Error != nil {
		return unspecifiedCheck(), models.NewFetchError(models.ErrCodeVision,
			fmt.Sprintf("vision API error: %s", parsed.Error.Message), nil)
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Choices) == 0 {
		return unspecifiedCheck(), models.NewFetchError(models.ErrCodeVision,
			fmt.Sprintf("vision API returned status %d with no choices", resp.StatusCode), nil)
	}

	check, ok := parseCheck(parsed.Choices[0].Message.Content)
	if !ok {
		slog.Warn("vision response did not match the contract",
			"content", parsed.Choices[0].Message.Content)
		return unspecifiedCheck(), nil
	}
	return check, nil
}

// parseCheck extracts the two-key JSON object from the model output,
// tolerating the code fences models add despite instructions.
func parseCheck(content string) (Check, bool) {
	cleaned := StripFences(content)

	var check Check
	if err := json.Unmarshal([]byte(cleaned), &check); err != nil {
		return Check{}, false
	}
	if strings.TrimSpace(check.Brand) == "" {
		check.Brand = models.Unspecified
	}
	if strings.TrimSpace(check.Price) == "" {
		check.Price = models.Unspecified
	}
	return check, true
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

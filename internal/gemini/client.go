// Package gemini provides the prediction service backed by the Gemini
// generateContent REST API. It turns market context or a chart image into a
// validated trading plan.
//
// The client owns the full request/validate pipeline: prompt construction,
// the declared JSON response schema, transport, and local validation of the
// returned plan. Validation is authoritative regardless of what the backend
// claims to have done. Requests are never retried internally; the caller
// decides whether to re-trigger a failed prediction.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finlens/chartoracle/internal/logger"
	"github.com/finlens/chartoracle/internal/models"
)

// DefaultAPIBaseURL is the production Gemini REST endpoint prefix.
const DefaultAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// minRiskReward is the reward-to-risk ratio the prompt demands from the
// backend. It is declared, logged when violated, but never enforced locally.
const minRiskReward = 3.0

// Client calls the Gemini generateContent API and validates its responses.
type Client struct {
	apiKey     string
	model      string
	apiBaseURL string
	httpClient *http.Client
}

// NewClient creates a Gemini client. apiBaseURL is overridable for tests;
// pass DefaultAPIBaseURL in production.
func NewClient(apiKey, model, apiBaseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      model,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PredictFromMarket requests a trading plan for the instrument based on the
// given market snapshot.
func (c *Client) PredictFromMarket(ctx context.Context, instrument models.Instrument, snapshot models.MarketSnapshot) (*models.Prediction, error) {
	prompt := marketPrompt(instrument, snapshot)
	return c.predict(ctx, []part{{Text: prompt}})
}

// PredictFromImage requests a trading plan for the instrument based on a chart
// image and optional user instructions. imageData is the raw image payload and
// mimeType its detected MIME type.
func (c *Client) PredictFromImage(ctx context.Context, instrument models.Instrument, imageData []byte, mimeType, instructions string) (*models.Prediction, error) {
	parts := []part{
		{
			InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(imageData),
			},
		},
		{Text: imagePrompt(instrument, instructions)},
	}
	return c.predict(ctx, parts)
}

// predict is the shared request/validate pipeline behind both entry points.
func (c *Client) predict(ctx context.Context, parts []part) (*models.Prediction, error) {
	reqBody := generateContentRequest{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   predictionSchema(),
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.apiBaseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call prediction backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("prediction backend returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}

	text, err := apiResp.text()
	if err != nil {
		return nil, err
	}

	prediction, err := parsePrediction(text)
	if err != nil {
		return nil, err
	}

	// The prompt demands reward >= 3x risk for actionable signals. The ratio
	// is a declared contract, not a locally enforced one: violations are
	// surfaced in the log and the plan is accepted as-is.
	if prediction.Signal.Actionable() {
		if rr, ok := prediction.RiskReward(); ok && rr < minRiskReward {
			logger.Warn("Backend returned %s plan with reward/risk %.2f, below the declared minimum %.1f", prediction.Signal, rr, minRiskReward)
		}
	}

	return prediction, nil
}

// parsePrediction parses and validates the JSON plan embedded in the model's
// text output. Signal and reasoning are strict; the three price fields are
// kept only when they are JSON numbers and silently dropped otherwise, so a
// malformed number degrades to "absent" instead of failing the whole plan.
func parsePrediction(text string) (*models.Prediction, error) {
	var raw struct {
		Signal     string `json:"signal"`
		Reasoning  string `json:"reasoning"`
		EntryPrice any    `json:"entryPrice"`
		TakeProfit any    `json:"takeProfit"`
		StopLoss   any    `json:"stopLoss"`
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse prediction JSON: %w", err)
	}

	signal, err := models.ParseSignal(raw.Signal)
	if err != nil {
		return nil, fmt.Errorf("invalid prediction: %w", err)
	}

	prediction := &models.Prediction{
		Signal:     signal,
		Reasoning:  raw.Reasoning,
		EntryPrice: asNumber(raw.EntryPrice),
		TakeProfit: asNumber(raw.TakeProfit),
		StopLoss:   asNumber(raw.StopLoss),
	}

	if err := prediction.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prediction: %w", err)
	}

	return prediction, nil
}

// asNumber returns a pointer to v when it decoded as a JSON number and nil for
// anything else, including strings that look numeric.
func asNumber(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// generateContentRequest is the Gemini REST request envelope.
type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

// schema is a minimal subset of the Gemini structured-output schema type.
type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// predictionSchema declares the structured response contract sent with every
// request: required signal and reasoning, optional numeric price targets.
func predictionSchema() *schema {
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"signal": {
				Type:        "STRING",
				Enum:        []string{string(models.SignalBuy), string(models.SignalSell), string(models.SignalHold)},
				Description: "The trading signal.",
			},
			"entryPrice": {
				Type:        "NUMBER",
				Description: "The recommended entry price for the trade.",
			},
			"takeProfit": {
				Type:        "NUMBER",
				Description: "The recommended take-profit price.",
			},
			"stopLoss": {
				Type:        "NUMBER",
				Description: "The recommended stop-loss price.",
			},
			"reasoning": {
				Type:        "STRING",
				Description: "A brief explanation for the trading signal based on the analysis.",
			},
		},
		Required: []string{"signal", "reasoning"},
	}
}

// generateContentResponse mirrors the Gemini REST response envelope down to
// the text part the plan is embedded in.
type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

var errEmptyResponse = errors.New("no candidates in backend response")

// text extracts candidates[0].content.parts[0].text.
func (r *generateContentResponse) text() (string, error) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", errEmptyResponse
	}
	return r.Candidates[0].Content.Parts[0].Text, nil
}

// Package reports generates narrative summaries of sync activity through an
// OpenAI-compatible chat completions API.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/crmbridge/crmbridge-backend/pkg/config"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

var errAPIKeyRequired = errors.New("reports api key is required")

const systemPrompt = "You are an operations analyst for a CRM to accounting " +
	"integration. Summarize the provided sync activity in plain business " +
	"language: volumes, failures and their likely causes, and anything that " +
	"needs operator attention. Be concise."

// Client forwards report prompts to the completions API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient validates configuration and builds the reports wrapper.
func NewClient(cfg config.ReportsConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logg,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces a report from the given activity digest.
func (c *Client) Generate(ctx context.Context, digest string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: digest},
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode report request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build report request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(ctx, err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report generation failed")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("reports status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		c.logError(ctx, err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report generation failed")
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode report response")
	}
	if decoded.Error != nil {
		err := errors.New(decoded.Error.Message)
		c.logError(ctx, err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report generation failed")
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "report response had no content")
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) logError(ctx context.Context, err error) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Error(ctx, "report generation failed", err)
}

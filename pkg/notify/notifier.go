// Package notify delivers operational messages to a chat channel. Delivery
// is best effort: a failed send is logged and swallowed so notification
// outages never affect sync outcomes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/crmbridge/crmbridge-backend/pkg/config"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

// Notifier sends messages to operators.
type Notifier interface {
	Send(ctx context.Context, text string)
}

// ChatNotifier posts messages through a bot API.
type ChatNotifier struct {
	apiURL string
	chatID string
	http   *http.Client
	logger *logger.Logger
}

// NewChatNotifier builds a notifier, or nil when the channel is not
// configured. A nil *ChatNotifier is safe to call.
func NewChatNotifier(cfg config.NotifyConfig, logg *logger.Logger) *ChatNotifier {
	if !cfg.Enabled() {
		return nil
	}
	return &ChatNotifier{
		apiURL: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(cfg.BaseURL, "/"), cfg.BotToken),
		chatID: cfg.ChatID,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logg,
	}
}

// Send delivers one message. Errors are logged, never returned.
func (n *ChatNotifier) Send(ctx context.Context, text string) {
	if n == nil || strings.TrimSpace(text) == "" {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		n.logError(ctx, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(payload))
	if err != nil {
		n.logError(ctx, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logError(ctx, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		n.logError(ctx, fmt.Errorf("notify status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
}

func (n *ChatNotifier) logError(ctx context.Context, err error) {
	if n.logger == nil {
		return
	}
	n.logger.Error(ctx, "chat notification failed", err)
}

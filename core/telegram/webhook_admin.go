package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/m3rciful/hackbot/core/buildinfo"
	"github.com/m3rciful/hackbot/core/logger"
)

const defaultAPIURL = "https://api.telegram.org"

// AllowedUpdates lists the update kinds the bot asks Telegram for.
var AllowedUpdates = []string{"message", "callback_query"}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// BotAPI issues webhook management calls to the Bot API.
type BotAPI struct {
	client *resty.Client
	token  string
}

// NewBotAPI builds a client for token. An empty baseURL selects api.telegram.org.
func NewBotAPI(token, baseURL string, httpClient *http.Client) *BotAPI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultAPIURL
	}
	var c *resty.Client
	if httpClient != nil {
		c = resty.NewWithClient(httpClient)
	} else {
		c = resty.New()
	}
	c.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", buildinfo.UserAgent())
	return &BotAPI{client: c, token: token}
}

// Close releases the underlying client.
func (a *BotAPI) Close() error {
	return a.client.Close()
}

// SetWebhook registers publicURL with the secret Telegram must echo back.
func (a *BotAPI) SetWebhook(ctx context.Context, publicURL, secret string, dropPending bool) error {
	allowed, err := json.Marshal(AllowedUpdates)
	if err != nil {
		return err
	}
	return a.call(ctx, "setWebhook", map[string]string{
		"url":                  publicURL,
		"secret_token":         secret,
		"allowed_updates":      string(allowed),
		"drop_pending_updates": strconv.FormatBool(dropPending),
	})
}

// DeleteWebhook switches the bot back to getUpdates.
func (a *BotAPI) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return a.call(ctx, "deleteWebhook", map[string]string{
		"drop_pending_updates": strconv.FormatBool(dropPending),
	})
}

func (a *BotAPI) call(ctx context.Context, method string, form map[string]string) error {
	if strings.TrimSpace(a.token) == "" {
		return fmt.Errorf("telegram: %s: empty token", method)
	}
	start := time.Now()
	var out apiResponse
	res, err := a.client.R().
		SetContext(ctx).
		SetPathParam("token", a.token).
		SetPathParam("method", method).
		SetFormData(form).
		SetResult(&out).
		Post("/bot{token}/{method}")
	if err != nil {
		return fmt.Errorf("telegram: %s: %s", method, redactToken(err.Error(), a.token))
	}
	logger.Debug(ctx, "tg", "api.call",
		slog.String("status", logger.Status(nil)),
		slog.String("method", method),
		slog.Int("http_status", res.StatusCode()),
		slog.Duration("duration", logger.Took(start)),
	)
	if res.IsError() {
		return fmt.Errorf("telegram: %s: %s %s", method, res.Status(), strings.TrimSpace(res.String()))
	}
	if !out.OK {
		return fmt.Errorf("telegram: %s: %s", method, out.Description)
	}
	return nil
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}

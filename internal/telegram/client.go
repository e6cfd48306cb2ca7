// Package telegram implements a minimal Telegram Bot API client and the
// update router for the linking assistant.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"account-link-bot/internal/notify"
)

const defaultBaseURL = "https://api.telegram.org"

// longPollSeconds is the getUpdates long-poll timeout. The HTTP client
// timeout must stay above it.
const longPollSeconds = 50

const defaultTimeout = 60 * time.Second

// User is a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Chat is a Telegram chat.
type Chat struct {
	ID int64 `json:"id"`
}

// Message is an incoming or sent chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

// Update is one getUpdates result entry.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Client talks to the Telegram Bot API over HTTPS.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Bot API client for the given token. baseURL may be
// empty to use api.telegram.org.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		Token:      token,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// call POSTs the payload to the Bot API method and decodes the result into
// out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("telegram: %s returned status=%d body=%s", method, resp.StatusCode, string(body))
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram: %s failed: %s", method, apiResp.Description)
	}
	if out != nil && len(apiResp.Result) > 0 {
		return json.Unmarshal(apiResp.Result, out)
	}
	return nil
}

// GetUpdates long-polls for updates after offset. Blocks up to
// longPollSeconds when no updates are pending.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         longPollSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends a text message with optional parse mode and inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string, markup *inlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// EditMessageText replaces the text (and keyboard) of a sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, markup *inlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// ClearMessageKeyboard removes the inline keyboard from a sent message.
func (c *Client) ClearMessageKeyboard(ctx context.Context, chatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"reply_markup": inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{}},
	}
	return c.call(ctx, "editMessageReplyMarkup", payload, nil)
}

// AnswerCallbackQuery acknowledges a button press with an optional toast text.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// Deliver implements notify.Notifier on top of SendMessage.
func (c *Client) Deliver(ctx context.Context, chatID int64, msg notify.Message) error {
	return c.SendMessage(ctx, chatID, msg.Text, msg.ParseMode, markupFor(msg.Buttons))
}

// markupFor converts the transport-neutral button grid to the wire format.
// Returns nil for an empty grid so reply_markup is omitted.
func markupFor(buttons [][]notify.Button) *inlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]inlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		wire := make([]inlineKeyboardButton, 0, len(row))
		for _, b := range row {
			wire = append(wire, inlineKeyboardButton{Text: b.Text, URL: b.URL, CallbackData: b.CallbackData})
		}
		rows = append(rows, wire)
	}
	return &inlineKeyboardMarkup{InlineKeyboard: rows}
}

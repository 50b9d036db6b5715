package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/maheshrc27/autopost/internal/models"
)

const (
	telegramCaptionLimit = 1024
	telegramMessageLimit = 4096
)

// Telegram posts into the chat or channel in Routing.ExternalID using the
// Bot API. A numeric SubTarget is a forum topic (message_thread_id).
type Telegram struct {
	client   *http.Client
	apiURL   string
	botToken string
}

func NewTelegram(opts Options) *Telegram {
	apiURL := opts.TelegramAPIURL
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	return &Telegram{
		client:   newHTTPClient(opts.Timeout, opts.RatePerSecond),
		apiURL:   strings.TrimRight(apiURL, "/"),
		botToken: opts.TelegramBotToken,
	}
}

func (t *Telegram) Type() models.PlatformType { return models.PlatformTelegram }

type tgChat struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type tgMessage struct {
	MessageID int64  `json:"message_id"`
	Chat      tgChat `json:"chat"`
}

type tgResponse struct {
	OK          bool      `json:"ok"`
	Result      tgMessage `json:"result"`
	ErrorCode   int       `json:"error_code"`
	Description string    `json:"description"`
}

func (t *Telegram) Publish(ctx context.Context, req *Request) *Result {
	chatID := req.Routing.ExternalID
	if chatID == "" {
		return failure(t.Type(), ErrInvalid, "chat id is missing")
	}
	token := t.botToken
	if req.Credentials != nil && req.Credentials.BotToken != "" {
		token = req.Credentials.BotToken
	}
	if token == "" {
		return failure(t.Type(), ErrAuth, "bot token is missing")
	}

	text := telegramPolicy.Sanitize(req.Text)
	threadID := req.Routing.SubTarget

	var (
		msg  *tgMessage
		perr *PublishError
	)
	if len(req.Image) > 0 {
		caption, rest := splitHTML(text, telegramCaptionLimit)
		msg, perr = t.sendPhoto(ctx, token, chatID, threadID, caption, req.Image)
		if perr == nil && strings.TrimSpace(rest) != "" {
			rest, _ = splitHTML(rest, telegramMessageLimit)
			_, perr = t.sendMessage(ctx, token, chatID, threadID, rest)
		}
	} else {
		text, _ = splitHTML(text, telegramMessageLimit)
		msg, perr = t.sendMessage(ctx, token, chatID, threadID, text)
	}
	if perr != nil {
		return failWith(perr)
	}
	return success(messageURL(chatID, msg))
}

// Notify sends a plain message with the service bot.
func (t *Telegram) Notify(ctx context.Context, chatID int64, text string) error {
	if t.botToken == "" {
		return &PublishError{Kind: ErrAuth, Platform: t.Type(), Message: "bot token is missing"}
	}
	text, _ = splitHTML(html.EscapeString(text), telegramMessageLimit)
	if _, perr := t.sendMessage(ctx, t.botToken, strconv.FormatInt(chatID, 10), "", text); perr != nil {
		return perr
	}
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, token, chatID, threadID, text string) (*tgMessage, *PublishError) {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")
	if threadID != "" {
		form.Set("message_thread_id", threadID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.method(token, "sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &PublishError{Kind: ErrInvalid, Platform: t.Type(), Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

func (t *Telegram) sendPhoto(ctx context.Context, token, chatID, threadID, caption string, image []byte) (*tgMessage, *PublishError) {
	_, ext, ok := sniffImage(image)
	if !ok {
		return nil, &PublishError{Kind: ErrInvalid, Platform: t.Type(), Message: "image format not recognized"}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("chat_id", chatID)
	mw.WriteField("caption", caption)
	mw.WriteField("parse_mode", "HTML")
	if threadID != "" {
		mw.WriteField("message_thread_id", threadID)
	}
	part, err := mw.CreateFormFile("photo", "image."+ext)
	if err != nil {
		return nil, &PublishError{Kind: ErrInvalid, Platform: t.Type(), Message: err.Error()}
	}
	part.Write(image)
	mw.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.method(token, "sendPhoto"), &body)
	if err != nil {
		return nil, &PublishError{Kind: ErrInvalid, Platform: t.Type(), Message: err.Error()}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(req)
}

func (t *Telegram) method(token, name string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.apiURL, token, name)
}

func (t *Telegram) do(req *http.Request) (*tgMessage, *PublishError) {
	resp, err := t.client.Do(req)
	if err != nil {
		// drop the URL, it embeds the bot token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, transportError(t.Type(), err)
	}
	defer resp.Body.Close()

	var out tgResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, statusError(t.Type(), resp.StatusCode, "undecodable response")
	}
	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, statusError(t.Type(), code, out.Description)
	}
	return &out.Result, nil
}

func messageURL(chatID string, msg *tgMessage) string {
	if msg.Chat.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", msg.Chat.Username, msg.MessageID)
	}
	if strings.HasPrefix(chatID, "@") {
		return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(chatID, "@"), msg.MessageID)
	}
	if id := strconv.FormatInt(msg.Chat.ID, 10); strings.HasPrefix(id, "-100") {
		return fmt.Sprintf("https://t.me/c/%s/%d", strings.TrimPrefix(id, "-100"), msg.MessageID)
	}
	return ""
}

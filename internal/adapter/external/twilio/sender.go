// Package twilio отправка сообщений WhatsApp через Twilio REST API и проверка
// подписи входящих вебхуков.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"dailydev/internal/messaging"
	"dailydev/internal/platform/httpclient"
	"dailydev/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://api.twilio.com"
	// DefaultFromNumber номер песочницы Twilio для WhatsApp.
	DefaultFromNumber = "+14155238886"
)

// Sender реализует messaging.Sender для канала whatsapp.
type Sender struct {
	client     *httpclient.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	log        *slog.Logger
}

var _ messaging.Sender = (*Sender)(nil)

// NewSender пустой from заменяется номером песочницы; пустой baseURL боевым API.
func NewSender(c *httpclient.Client, baseURL, accountSID, authToken, from string, log *slog.Logger) *Sender {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if from == "" {
		from = DefaultFromNumber
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		client:     c,
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       strings.TrimPrefix(from, messaging.ChannelWhatsApp+":"),
		log:        log,
	}
}

// Configured true, если заданы SID и токен.
func (s *Sender) Configured() bool { return s.accountSID != "" && s.authToken != "" }

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// SendMessage отправляет текст и возвращает SID сообщения.
func (s *Sender) SendMessage(ctx context.Context, handle, text string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("%w: twilio credentials missing", messaging.ErrNotConfigured)
	}
	addr, err := messaging.ParseAddress(handle)
	if err != nil {
		return "", err
	}
	if addr.Channel != messaging.ChannelWhatsApp {
		return "", fmt.Errorf("%w: twilio cannot deliver to %s", messaging.ErrInvalidAddress, addr.Channel)
	}

	form := url.Values{}
	form.Set("From", messaging.ChannelWhatsApp+":"+s.from)
	form.Set("To", addr.String())
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", messaging.ErrDeliveryFailed, err)
	}
	if err := httpclient.CheckStatus("twilio", resp); err != nil {
		return "", fmt.Errorf("%w: %w", messaging.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", messaging.ErrDeliveryFailed, err)
	}
	s.log.Info("whatsapp message sent", "sid", out.SID, "status", out.Status, "to", logger.MaskHandle(handle))
	return out.SID, nil
}

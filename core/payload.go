package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	ContentTypeJSON = "application/json; charset=utf-8"
	ContentTypeForm = "application/x-www-form-urlencoded"

	maxStoredErrorLength = 1024
)

type WebhookPayload struct {
	Body  string `json:"body"`
	Title string `json:"title"`
	Group string `json:"group"`
}

func BuildWebhookPayload(message Message, titlePrefix string, group string) WebhookPayload {
	if group == "" {
		group = DefaultDeliveryGroup
	}
	return WebhookPayload{
		Body:  message.Content,
		Title: titlePrefix + message.Sender,
		Group: group,
	}
}

// ResolveWebhookURL joins the channel base URL (or fallback) with the key.
func ResolveWebhookURL(channel ChannelConfig, fallbackBase string) (string, error) {
	key := strings.TrimSpace(channel.Key)
	if key == "" {
		return "", NewConfigurationError(nil, "delivery key is empty", nil)
	}
	base := strings.TrimSpace(channel.BaseURL)
	if base == "" {
		base = strings.TrimSpace(fallbackBase)
	}
	if base == "" {
		base = DefaultDeliveryBaseURL
	}
	base = strings.TrimRight(base, "/")
	target := base + "/" + key
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", NewConfigurationError(err, fmt.Sprintf("invalid delivery url %q", target), map[string]any{"base_url": base})
	}
	return target, nil
}

// BuildWebhookRequest serializes the payload and, when the channel carries an
// active encryption block, replaces the JSON body with form-encoded ciphertext.
func BuildWebhookRequest(
	channel ChannelConfig,
	payload WebhookPayload,
	encrypter PayloadEncrypter,
	fallbackBase string,
) (WebhookRequest, error) {
	target, err := ResolveWebhookURL(channel, fallbackBase)
	if err != nil {
		return WebhookRequest{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return WebhookRequest{}, NewConfigurationError(err, "serialize webhook payload", nil)
	}
	if !channel.Encryption.Active() {
		return WebhookRequest{
			URL:         target,
			ContentType: ContentTypeJSON,
			Body:        raw,
		}, nil
	}
	if encrypter == nil {
		return WebhookRequest{}, NewConfigurationError(nil, "payload encrypter is not configured", nil)
	}
	enc := channel.Encryption
	ciphertext, err := encrypter.EncryptPayload(string(raw), enc.Mode, enc.Key, enc.IV)
	if err != nil {
		return WebhookRequest{}, NewConfigurationError(err, "encrypt webhook payload", map[string]any{"mode": enc.Mode})
	}
	form := url.Values{}
	form.Set("ciphertext", ciphertext)
	if enc.IV != "" && modeCarriesIV(enc.Mode) {
		form.Set("iv", enc.IV)
	}
	return WebhookRequest{
		URL:         target,
		ContentType: ContentTypeForm,
		Body:        []byte(form.Encode()),
	}, nil
}

func modeCarriesIV(mode string) bool {
	mode = strings.TrimSpace(mode)
	return strings.EqualFold(mode, "CBC") || strings.EqualFold(mode, "GCM")
}

func deliveryFailureDetail(resp WebhookResponse, maxBody int) string {
	status := strings.TrimSpace(resp.Status)
	body := truncateText(string(resp.Body), maxBody)
	return strings.TrimSpace(fmt.Sprintf("webhook request failed: %d %s - %s", resp.StatusCode, status, body))
}

func truncateText(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	cut := value[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

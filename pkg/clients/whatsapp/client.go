package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/campcheck/internal/config"
)

// Client exposes the WhatsApp Cloud API calls the check-in flow needs.
type Client interface {
	SendTextMessage(ctx context.Context, msg TextMessage) (string, error)
	MarkRead(ctx context.Context, messageID string) error
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// TextMessage is a plain text message to a single recipient.
type TextMessage struct {
	To         string
	Body       string
	PreviewURL bool
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is the error envelope returned by the Graph API.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
	TraceID string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d code=%d message=%s", e.Status, e.Code, e.Message)
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// SendTextMessage delivers msg and returns the message id assigned by Meta.
func (c *APIClient) SendTextMessage(ctx context.Context, msg TextMessage) (string, error) {
	if msg.To == "" || msg.Body == "" {
		return "", errors.New("recipient and body are required")
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.To,
		"type":              "text",
		"text": map[string]any{
			"body":        msg.Body,
			"preview_url": msg.PreviewURL,
		},
	}

	result := new(sendResponse)
	if err := c.post(ctx, payload, result); err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}
	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}

// MarkRead flags an inbound message as read so the counselor sees blue ticks.
func (c *APIClient) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	if err := c.post(ctx, payload, nil); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

func (c *APIClient) post(ctx context.Context, payload, result any) error {
	envelope := new(errorEnvelope)

	req := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(envelope)
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return err
	}

	if resp.IsError() {
		apiErr := envelope.Error
		apiErr.Status = resp.StatusCode()
		return &apiErr
	}
	return nil
}

// Package notify предоставляет доставку кодов подтверждения через внешний почтовый шлюз.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	mailFrom    = "Simple Store <no-reply@store.com>"
	mailSubject = "Your OTP Code"
)

// Client инкапсулирует HTTP-взаимодействие с почтовым шлюзом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// NewClient создаёт HTTP-клиент для обращения к почтовому шлюзу по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// SendOTP отправляет письмо с кодом подтверждения на указанный адрес.
func (c *Client) SendOTP(ctx context.Context, email, code string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("mail client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	payload, err := json.Marshal(sendRequest{
		From:    mailFrom,
		To:      email,
		Subject: mailSubject,
		Text:    fmt.Sprintf("Your OTP code is: %s", code),
	})
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	url := base + "/api/send"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

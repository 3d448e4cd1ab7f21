// Package notify implements the notification-service contract against
// an HTTP gateway. The gateway owns permission state and delivers the
// scheduled notifications out-of-process; this client only submits.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gatherly/core"
)

type Client struct {
	baseURL string
	http    *http.Client
}

var _ core.Notifier = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type permissionResponse struct {
	Granted bool `json:"granted"`
}

func (c *Client) Permission(ctx context.Context) (bool, error) {
	return c.permission(ctx, http.MethodGet)
}

func (c *Client) RequestPermission(ctx context.Context) (bool, error) {
	return c.permission(ctx, http.MethodPost)
}

func (c *Client) permission(ctx context.Context, method string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/permissions", nil)
	if err != nil {
		return false, fmt.Errorf("failed to build permission request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("permission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("permission request failed: status %d", resp.StatusCode)
	}

	var body permissionResponse

	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return false, fmt.Errorf("failed to decode permission response: %w", err)
	}

	return body.Granted, nil
}

type scheduleRequest struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	DelaySeconds int64  `json:"delay_seconds"`
}

type scheduleResponse struct {
	Id string `json:"id"`
}

func (c *Client) Schedule(ctx context.Context, content core.NotificationContent, delaySeconds int64) (string, error) {
	payload, err := json.Marshal(scheduleRequest{
		Title:        content.Title,
		Body:         content.Body,
		DelaySeconds: delaySeconds,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal schedule request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build schedule request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("schedule request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("schedule request failed: status %d", resp.StatusCode)
	}

	var body scheduleResponse

	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", fmt.Errorf("failed to decode schedule response: %w", err)
	}

	return body.Id, nil
}

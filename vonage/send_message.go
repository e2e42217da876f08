package vonage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SendSMSTextMessage sends a plain SMS to the given E.164 number from the
// configured sender number. The geospecific endpoint is preferred when
// configured; it is the lower-latency regional host for the same API.
func (c *Client) SendSMSTextMessage(ctx context.Context, toNumber, text string) (*MessageResponse, error) {
	message := SMSMessage{
		To:          toNumber,
		From:        c.config.SenderNumber,
		Channel:     "sms",
		MessageType: "text",
		Text:        text,
	}

	url := c.config.GeospecificMessagesAPIURL
	if url == "" {
		url = c.config.MessagesAPIURL
	}
	return c.postMessage(ctx, url, message)
}

func (c *Client) postMessage(ctx context.Context, url string, message SMSMessage) (*MessageResponse, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("vonage: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("vonage: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.VonageJWT)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vonage: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("vonage: message rejected with status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vonage: read response: %w", err)
	}

	messageResponse := &MessageResponse{}
	if err := json.Unmarshal(respBody, messageResponse); err != nil {
		return nil, fmt.Errorf("vonage: decode response: %w", err)
	}
	return messageResponse, nil
}

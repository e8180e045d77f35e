package deliver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// EmailClient posts messages with a base64 attachment to an email provider's
// JSON API. Retries with backoff are handled by the underlying client;
// provider 4xx responses are terminal validation failures.
type EmailClient struct {
	endpoint string
	apiKey   string
	from     string
	http     *retryablehttp.Client
}

func NewEmailClient(endpoint, apiKey, from string) *EmailClient {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &EmailClient{endpoint: endpoint, apiKey: apiKey, from: from, http: rc}
}

func (c *EmailClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	payload := map[string]any{
		"from":    c.from,
		"to":      msg.To,
		"subject": msg.Subject,
		"attachment": map[string]string{
			"filename":    msg.Attachment.Filename,
			"content":     base64.StdEncoding.EncodeToString(msg.Attachment.Payload),
			"contentType": msg.Attachment.MIME,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Reason: ReasonValidation, Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", &Error{Reason: ReasonTransport, Err: fmt.Errorf("email provider %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		var detail map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return "", &Error{Reason: ReasonValidation, Err: fmt.Errorf("email provider %d: %v", resp.StatusCode, detail)}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Reason: ReasonTransport, Err: err}
	}
	return out.ID, nil
}

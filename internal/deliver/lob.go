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
	"golang.org/x/time/rate"
)

// LobClient submits letters to the Lob print-and-mail API. Outbound calls are
// rate limited to stay inside the provider's request caps.
type LobClient struct {
	apiKey  string
	baseURL string
	from    Destination
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

func NewLobClient(apiKey string, from Destination) *LobClient {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil

	return &LobClient{
		apiKey:  apiKey,
		baseURL: "https://api.lob.com",
		from:    from,
		http:    rc,
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 5),
	}
}

func (c *LobClient) SendLetter(ctx context.Context, letter Letter) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &Error{Reason: ReasonTransport, Err: err}
	}

	payload := map[string]any{
		"description": "Property presentation letter",
		"to": map[string]string{
			"name":          letter.To.Name,
			"address_line1": letter.To.AddressLine1,
			"address_line2": letter.To.AddressLine2,
			"address_city":  letter.To.City,
			"address_state": letter.To.State,
			"address_zip":   letter.To.Zip,
		},
		"from": map[string]string{
			"name":          c.from.Name,
			"address_line1": c.from.AddressLine1,
			"address_line2": c.from.AddressLine2,
			"address_city":  c.from.City,
			"address_state": c.from.State,
			"address_zip":   c.from.Zip,
		},
		"file":         base64.StdEncoding.EncodeToString(letter.Artifact.Payload),
		"color":        false,
		"double_sided": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Reason: ReasonValidation, Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/letters", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", &Error{Reason: ReasonTransport, Err: fmt.Errorf("lob %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		var detail map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return "", &Error{Reason: ReasonValidation, Err: fmt.Errorf("lob %d: %v", resp.StatusCode, detail)}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Reason: ReasonTransport, Err: err}
	}
	return out.ID, nil
}

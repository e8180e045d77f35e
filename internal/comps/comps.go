package comps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/presentation-api/internal/model"
)

// Provider returns recently sold comparables for a subject property, ordered
// by relevance. Zero records is a valid answer.
type Provider interface {
	Fetch(ctx context.Context, p model.PropertyRecord) ([]model.ComparableRecord, error)
}

// Client fetches comparables from the sales-comps API gateway.
type Client struct {
	key     string
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 6 * time.Second
	rc.Logger = nil

	return &Client{
		key:     apiKey,
		baseURL: "https://api.gateway.attomdata.com",
		http:    rc,
	}
}

// Fetch queries the sale snapshot endpoint around the subject's ZIP and maps
// the payload. Results keep the provider's relevance order.
func (c *Client) Fetch(ctx context.Context, p model.PropertyRecord) ([]model.ComparableRecord, error) {
	q := url.Values{}
	q.Set("postalcode", p.Zip)
	q.Set("pagesize", "10")
	q.Set("page", "1")
	if p.SquareFootage > 0 {
		q.Set("minUniversalSize", fmt.Sprintf("%d", p.SquareFootage*7/10))
		q.Set("maxUniversalSize", fmt.Sprintf("%d", p.SquareFootage*13/10))
	}

	u := fmt.Sprintf("%s/propertyapi/v1.0.0/sale/snapshot?%s", c.baseURL, q.Encode())

	req, _ := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	req.Header.Set("accept", "application/json")
	req.Header.Set("apikey", c.key)

	resp, err := c.http.Do(req)
	if err != nil { return nil, err }
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("comps provider error %d: %v", resp.StatusCode, body)
	}
	raw, err := ioReadAllLimit(resp.Body, 4<<20) // 4MB guard
	if err != nil { return nil, err }
	return MapSalePayload(raw)
}

// MapSalePayload maps a provider sale-snapshot payload defensively; shapes
// vary by product plan.
func MapSalePayload(raw []byte) ([]model.ComparableRecord, error) {
	type aProperty struct {
		Address struct {
			OneLine string `json:"oneLine"`
			Line1   string `json:"line1"`
		} `json:"address"`
		Building struct {
			Beds  int `json:"bedrooms"`
			Baths struct {
				Total float64 `json:"baths"`
			} `json:"bathrooms"`
			Sqft int `json:"size"`
		} `json:"building"`
		Sale struct {
			Amount   float64 `json:"amount"`
			Date     string  `json:"saleTransDate"`
			PerSqft  float64 `json:"pricePerSizeUnit"`
			Distance float64 `json:"distance"`
		} `json:"sale"`
	}

	var root struct {
		Property []aProperty `json:"property"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}

	out := make([]model.ComparableRecord, 0, len(root.Property))
	for _, p := range root.Property {
		addr := p.Address.OneLine
		if addr == "" {
			addr = p.Address.Line1
		}
		if addr == "" || p.Sale.Amount <= 0 {
			continue
		}
		ppsf := p.Sale.PerSqft
		if ppsf == 0 && p.Building.Sqft > 0 {
			ppsf = p.Sale.Amount / float64(p.Building.Sqft)
		}
		out = append(out, model.ComparableRecord{
			Address:            addr,
			Price:              p.Sale.Amount,
			Bedrooms:           p.Building.Beds,
			Bathrooms:          p.Building.Baths.Total,
			SquareFootage:      p.Building.Sqft,
			SoldDate:           p.Sale.Date,
			DistanceMiles:      p.Sale.Distance,
			PricePerSquareFoot: ppsf,
		})
	}
	return out, nil
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil { return nil, err }
	if int64(len(b)) > limit { return nil, errors.New("payload too large") }
	return b, nil
}

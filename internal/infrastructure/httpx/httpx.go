package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	infraconfig "currency-rates-service/internal/infrastructure/config"

	"github.com/cenkalti/backoff/v4"
)

type Client struct {
	HTTP *http.Client
	// MaxElapsed bounds the total retry time; zero uses the default.
	MaxElapsed time.Duration
}

// DoJSON sends req and decodes a 200 response into out. Network errors and 5xx
// responses are retried with exponential backoff; anything else fails immediately.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) error {
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	maxElapsed := c.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = infraconfig.DefaultRetryMaxElapsed
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 1 * time.Second
	exp.MaxElapsedTime = maxElapsed

	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	op := func() error {
		resp, err := hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(exp, ctx))
}

// Package provisioner is the consumed contract for the external
// authentication/provisioning HTTP service: fetch an AuthRecord for an
// IMSI. Its internals (retry policy, transport) are pinned here even
// though the service itself is out of scope.
package provisioner

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/osmocom-go/hlr-gsup/pkg/metrics"
)

// AuthRecord is the per-subscriber key material and profile data returned
// by the provisioner.
type AuthRecord struct {
	KiHex  string `json:"ki"`
	OPCHex string `json:"opc"`
	AMF    string `json:"amf"`
	SQN    *int64 `json:"sqn,omitempty"`
	MSISDN string `json:"msisdn,omitempty"`

	// BearerServices/Teleservices are raw GSUP IE payloads the provisioner
	// may supply verbatim; encoding/json represents a []byte field as a
	// base64 string on the wire.
	BearerServices []byte `json:"bearer_services,omitempty"`
	Teleservices   []byte `json:"teleservices,omitempty"`
}

// KiBytes hex-decodes Ki for use on the wire.
func (r AuthRecord) KiBytes() ([]byte, error) {
	return hex.DecodeString(r.KiHex)
}

// OPCBytes hex-decodes OPC for use on the wire.
func (r AuthRecord) OPCBytes() ([]byte, error) {
	return hex.DecodeString(r.OPCHex)
}

// Client is the HTTP-backed implementation of FetchAuthData.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
}

// Config configures the provisioner client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New builds a Client bound to cfg.BaseURL.
func New(cfg Config, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: m,
	}
}

// FetchAuthData retrieves the AuthRecord for imsi via
// GET {base}/auc/imsi/{imsi}, retrying transient failures with a bounded
// exponential backoff. A 4xx response is treated as a non-retryable
// failure (the IMSI is simply unknown or the request malformed).
func (c *Client) FetchAuthData(ctx context.Context, imsi string) (*AuthRecord, error) {
	endpoint := fmt.Sprintf("%s/auc/imsi/%s", c.baseURL, url.PathEscape(imsi))

	var record *AuthRecord

	boff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	op := func() error {
		c.metrics.ProvisionerRequestsTotal.Inc()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			c.metrics.ProvisionerFailuresTotal.Inc()
			return err // transient: retry
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			c.metrics.ProvisionerFailuresTotal.Inc()
			return backoff.Permanent(fmt.Errorf("provisioner: %s returned %d", endpoint, resp.StatusCode))
		}
		if resp.StatusCode >= 500 {
			c.metrics.ProvisionerFailuresTotal.Inc()
			return fmt.Errorf("provisioner: %s returned %d", endpoint, resp.StatusCode) // transient: retry
		}

		var rec AuthRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			c.metrics.ProvisionerFailuresTotal.Inc()
			return backoff.Permanent(fmt.Errorf("provisioner: decoding response: %w", err))
		}

		if err := validate(rec); err != nil {
			c.metrics.ProvisionerFailuresTotal.Inc()
			return backoff.Permanent(err)
		}

		record = &rec
		return nil
	}

	if err := backoff.Retry(op, boff); err != nil {
		return nil, err
	}
	return record, nil
}

func validate(r AuthRecord) error {
	if r.KiHex == "" || r.OPCHex == "" || r.AMF == "" {
		return fmt.Errorf("provisioner: response missing mandatory field(s)")
	}
	if _, err := hex.DecodeString(r.KiHex); err != nil {
		return fmt.Errorf("provisioner: ki is not valid hex: %w", err)
	}
	if _, err := hex.DecodeString(r.OPCHex); err != nil {
		return fmt.Errorf("provisioner: opc is not valid hex: %w", err)
	}
	return nil
}

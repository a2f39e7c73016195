package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMissingActor is returned by UpdateRecord before any network call
// when the update does not set last_actor.
var ErrMissingActor = errors.New("cannot update record without setting last_actor")

// Store is the record-store surface the agent loop needs.
type Store interface {
	// PendingRecords returns records ready for pickup: status=cleaned
	// and last written by the upstream producer.
	PendingRecords(ctx context.Context) ([]CanonicalRecord, error)

	// UpdateRecord applies a partial write to one record, stamping
	// updated_at. Fails fast if the update omits last_actor.
	UpdateRecord(ctx context.Context, id string, update Update) error
}

// RESTClient talks to the record store's PostgREST interface:
// equality-filtered queries and patch-by-id updates, authenticated with
// an API key.
type RESTClient struct {
	baseURL    string
	apiKey     string
	table      string
	upstream   string
	httpClient *http.Client
	now        func() time.Time
}

// RESTConfig configures a RESTClient.
type RESTConfig struct {
	// URL is the store root, e.g. "https://project.example.co". The
	// "/rest/v1" segment is appended here.
	URL string

	// APIKey authenticates every call (apikey + bearer headers).
	APIKey string

	// Table holding canonical records.
	Table string

	// Upstream is the producer whose records are eligible for pickup.
	Upstream string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// NewRESTClient validates config and builds a client.
func NewRESTClient(config RESTConfig) (*RESTClient, error) {
	if config.URL == "" || config.APIKey == "" {
		return nil, fmt.Errorf("records: store URL and API key are required")
	}
	if config.Table == "" {
		config.Table = "canonical_records"
	}
	if config.Upstream == "" {
		return nil, fmt.Errorf("records: upstream actor is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(config.URL, "/") + "/rest/v1",
		apiKey:     config.APIKey,
		table:      config.Table,
		upstream:   config.Upstream,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

func (c *RESTClient) PendingRecords(ctx context.Context) ([]CanonicalRecord, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("status", "eq."+StatusCleaned)
	params.Set("last_actor", "eq."+c.upstream)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+c.table+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records: query: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, statusError("query", res)
	}

	var out []CanonicalRecord
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("records: decoding query response: %w", err)
	}
	return out, nil
}

func (c *RESTClient) UpdateRecord(ctx context.Context, id string, update Update) error {
	if update.LastActor == "" {
		return ErrMissingActor
	}
	update.UpdatedAt = c.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(update)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("id", "eq."+id)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+"/"+c.table+"?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("records: update: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError("update", res)
	}
	return nil
}

func (c *RESTClient) authorize(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func statusError(op string, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("records: %s returned %d: %s", op, res.StatusCode, strings.TrimSpace(string(body)))
}

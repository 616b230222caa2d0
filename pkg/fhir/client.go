package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clinisync/fhir-sync/pkg/common/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	// ErrRemoteUnavailable covers connectivity failures and non-2xx
	// responses from the FHIR server.
	ErrRemoteUnavailable = errors.New("fhir server unavailable")
	// ErrRemoteTimeout covers request deadlines and network timeouts.
	ErrRemoteTimeout = errors.New("fhir server request timed out")
)

type Config struct {
	BaseURL string
	Timeout time.Duration

	// Optional SMART backend-services auth. When TokenURL is empty the
	// client talks to the server unauthenticated.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Client issues search queries against the remote FHIR server. It performs
// no retries; retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg Config) *Client {
	base := httpclient.New(cfg.Timeout)

	hc := base
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = cc.Client(ctx)
		hc.Timeout = cfg.Timeout
	}

	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (c *Client) search(ctx context.Context, resourcePath string, query url.Values) (*Bundle, error) {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, resourcePath, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", resourcePath, err)
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrRemoteTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", ErrRemoteUnavailable, resp.StatusCode, resourcePath)
	}

	var bundle Bundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("%w: decoding bundle: %w", ErrRemoteUnavailable, err)
	}

	return &bundle, nil
}

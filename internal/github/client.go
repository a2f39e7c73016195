// Package github is a minimal GitHub App client: enough to mint
// installation tokens and open issues, nothing more.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const defaultBaseURL = "https://api.github.com"

// apiVersion pins the GitHub REST API version header.
const apiVersion = "2022-11-28"

// Config holds what the client needs to authenticate as a GitHub App
// installation.
type Config struct {
	// BaseURL defaults to the public API. Tests point it at a local server.
	BaseURL string

	// AppID is the App's numeric ID.
	AppID int64

	// PrivateKey is the App's PEM-encoded RSA private key.
	PrivateKey []byte

	// InstallationID selects which installation tokens are minted for.
	InstallationID int64

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client exchanges App JWTs for installation tokens and performs the few
// REST calls the agent needs.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	signer         *appSigner
	installationID int64
}

// NewClient validates config and builds a client.
func NewClient(config Config) (*Client, error) {
	if config.AppID == 0 {
		return nil, fmt.Errorf("github: app id is required")
	}
	if config.InstallationID == 0 {
		return nil, fmt.Errorf("github: installation id is required")
	}

	signer, err := newAppSigner(config.AppID, config.PrivateKey)
	if err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     httpClient,
		signer:         signer,
		installationID: config.InstallationID,
	}, nil
}

// InstallationToken mints a fresh installation access token. Every call
// performs a full JWT generation and exchange round-trip.
// TODO: cache tokens until shortly before their expiry; each verify on
// the scan endpoint currently pays a full exchange.
func (c *Client) InstallationToken(ctx context.Context) (string, error) {
	jwt, err := c.signer.JWT()
	if err != nil {
		return "", fmt.Errorf("github: generating app jwt: %w", err)
	}

	url := c.baseURL + "/app/installations/" + strconv.FormatInt(c.installationID, 10) + "/access_tokens"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github: token exchange: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("github: token exchange returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("github: decoding token exchange response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("github: token exchange returned empty token")
	}
	return result.Token, nil
}

// Issue is a created GitHub issue.
type Issue struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// CreateIssue opens an issue in owner/repo using a freshly minted
// installation token.
func (c *Client) CreateIssue(ctx context.Context, owner, repo, title, body string) (Issue, error) {
	token, err := c.InstallationToken(ctx)
	if err != nil {
		return Issue{}, err
	}

	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return Issue{}, err
	}

	url := c.baseURL + "/repos/" + owner + "/" + repo + "/issues"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Issue{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Issue{}, fmt.Errorf("github: create issue: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return Issue{}, fmt.Errorf("github: create issue returned %d: %s", res.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var issue Issue
	if err := json.NewDecoder(res.Body).Decode(&issue); err != nil {
		return Issue{}, fmt.Errorf("github: decoding issue response: %w", err)
	}
	return issue, nil
}

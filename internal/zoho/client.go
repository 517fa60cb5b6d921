// Package zoho talks to the Zoho Mail REST API: OAuth2 token exchange on the
// accounts host and attachment retrieval on the mail host.
package zoho

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Token exchange and API failures callers are expected to branch on.
var (
	// ErrMissingCredentials means client id, secret or refresh token are not
	// configured.
	ErrMissingCredentials = errors.New("zoho: missing oauth credentials")
	// ErrTokenExchange means the provider refused the refresh grant. Not
	// retried; a revoked refresh token needs operator action.
	ErrTokenExchange = errors.New("zoho: token exchange failed")
)

// Config carries the credentials and endpoints for one Zoho Mail tenant.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// AccountID may be empty; it is then discovered via the accounts API and
	// cached.
	AccountID      string
	AccountsURL    string
	MailAPIURL     string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client is a Zoho Mail API client authenticated via refresh-token grants.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	accountID   string
}

// NewClient builds a client. Timeouts default to 10s connect / 30s total.
func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout: cfg.ConnectTimeout,
			},
		},
		logger:    logger,
		accountID: cfg.AccountID,
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int    `json:"expires_in"`
	Scope            string `json:"scope"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// GetAccessToken exchanges the configured refresh token for a short-lived
// access token. Tokens are cached until shortly before expiry; a provider
// side revoke surfaces as ErrTokenExchange on the next exchange.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" || c.cfg.RefreshToken == "" {
		return "", ErrMissingCredentials
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {c.cfg.RefreshToken},
	}
	endpoint := strings.TrimRight(c.cfg.AccountsURL, "/") + "/oauth/v2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: malformed response", ErrTokenExchange)
	}
	if resp.StatusCode != http.StatusOK || tok.Error != "" || tok.AccessToken == "" {
		c.logger.Printf("zoho: token exchange rejected: status=%d error=%s", resp.StatusCode, tok.Error)
		return "", fmt.Errorf("%w: status %d %s", ErrTokenExchange, resp.StatusCode, tok.Error)
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	// Refresh one minute early to avoid using a token at the expiry edge.
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	c.mu.Unlock()
	return tok.AccessToken, nil
}

// Account is one mail account visible to the authorized credentials.
type Account struct {
	AccountID           string `json:"accountId"`
	AccountName         string `json:"accountName"`
	PrimaryEmailAddress string `json:"primaryEmailAddress"`
}

// ListAccounts returns the mail accounts for the tenant.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Data []Account `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/accounts", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// AccountID returns the configured or discovered account identifier,
// resolving it via the accounts API on first use.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accountID != "" {
		id := c.accountID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", errors.New("zoho: no mail accounts visible to these credentials")
	}
	c.mu.Lock()
	c.accountID = accounts[0].AccountID
	c.mu.Unlock()
	return accounts[0].AccountID, nil
}

// AttachmentInfo describes one attachment of a stored message.
type AttachmentInfo struct {
	AttachmentID   string `json:"attachmentId"`
	AttachmentName string `json:"attachmentName"`
	AttachmentSize int64  `json:"attachmentSize"`
	ContentType    string `json:"contentType"`
	Disposition    string `json:"disposition"`
}

// ListAttachments fetches attachment metadata for a message.
func (c *Client) ListAttachments(ctx context.Context, messageID string) ([]AttachmentInfo, error) {
	accountID, err := c.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data struct {
			Attachments []AttachmentInfo `json:"attachments"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/accounts/%s/messages/%s/attachmentinfo",
		url.PathEscape(accountID), url.PathEscape(messageID))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Data.Attachments, nil
}

// DownloadAttachment returns the raw bytes of one attachment.
func (c *Client) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	accountID, err := c.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/api/accounts/%s/messages/%s/attachments/%s",
		url.PathEscape(accountID), url.PathEscape(messageID), url.PathEscape(attachmentID))
	resp, err := c.doAPI(ctx, path, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zoho: attachment download failed: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.doAPI(ctx, path, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zoho: %s failed: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doAPI(ctx context.Context, path, accept string) (*http.Response, error) {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.MailAPIURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.http.Do(req)
}

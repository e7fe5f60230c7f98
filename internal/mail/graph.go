package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	defaultLoginBaseURL = "https://login.microsoftonline.com"
	graphScope          = "https://graph.microsoft.com/.default"
)

// GraphConfig holds Azure AD application credentials for the
// client-credentials flow.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// GraphSender implements Sender and UserVerifier against the Microsoft
// Graph API. Messages are sent as the authenticated operator via
// POST /users/{sender}/sendMail; Graph's 202 accept is authoritative.
type GraphSender struct {
	config GraphConfig
	client *http.Client

	// BaseURL and LoginURL are overridable for tests.
	BaseURL  string
	LoginURL string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGraphSender creates a Graph mail sender.
func NewGraphSender(config GraphConfig) *GraphSender {
	return &GraphSender{
		config:   config,
		client:   &http.Client{Timeout: 30 * time.Second},
		BaseURL:  defaultGraphBaseURL,
		LoginURL: defaultLoginBaseURL,
	}
}

type graphMessage struct {
	Message graphMessageBody `json:"message"`
}

type graphMessageBody struct {
	Subject      string           `json:"subject"`
	Body         graphItemBody    `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
}

type graphItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

type graphTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type graphUserResponse struct {
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	Department        string `json:"department"`
}

// Send delivers one message via Graph. A non-202 response is a provider
// rejection (Accepted=false), not an error; errors are reserved for
// token acquisition and transport failures.
func (g *GraphSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	if msg.From == "" {
		return nil, ErrInvalidFromAddress
	}
	if msg.To == "" {
		return nil, ErrInvalidToAddress
	}

	token, err := g.acquireToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire access token: %w", err)
	}

	payload := graphMessage{
		Message: graphMessageBody{
			Subject: msg.Subject,
			Body: graphItemBody{
				ContentType: "Text",
				Content:     msg.Body,
			},
			ToRecipients: []graphRecipient{
				{EmailAddress: graphEmailAddress{Address: msg.To}},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sendMail payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", g.BaseURL, url.PathEscape(msg.From))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return &Result{Accepted: true}, nil
	}

	// Graph rejected the message; the status is the operator-visible detail.
	return &Result{
		Accepted: false,
		Detail:   fmt.Sprintf("送信失敗: %d", resp.StatusCode),
	}, nil
}

// LookupUser resolves an operator email against the Graph directory.
func (g *GraphSender) LookupUser(ctx context.Context, email string) (*Identity, error) {
	token, err := g.acquireToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire access token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s", g.BaseURL, url.PathEscape(email))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrUserNotFound(email)
	}

	var user graphUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	identity := &Identity{
		DisplayName: user.DisplayName,
		Email:       user.Mail,
		Department:  user.Department,
	}
	if identity.Email == "" {
		identity.Email = user.UserPrincipalName
	}
	if identity.Department == "" {
		identity.Department = "不明"
	}

	return identity, nil
}

// acquireToken returns a cached app token, refreshing it via the
// client-credentials grant when it is near expiry.
func (g *GraphSender) acquireToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", g.config.ClientID)
	form.Set("client_secret", g.config.ClientSecret)
	form.Set("scope", graphScope)
	form.Set("grant_type", "client_credentials")

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", g.LoginURL, url.PathEscape(g.config.TenantID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint error (status %d): %s", resp.StatusCode, string(body))
	}

	var token graphTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	g.accessToken = token.AccessToken
	// Refresh one minute early to avoid using a token mid-expiry.
	g.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)

	return g.accessToken, nil
}

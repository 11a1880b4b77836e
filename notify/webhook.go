package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"context"

	"github.com/aurahive/paygate/logger"
)

// identityTokenTTL is how long an exchanged identity token stays valid.
const identityTokenTTL = time.Hour

// refreshSlack renews the token slightly before it actually expires.
const refreshSlack = time.Minute

// WebhookSink posts reports to a submolt-style community endpoint. The
// long-lived API key is exchanged for a short-lived identity token which
// is cached until shortly before expiry.
type WebhookSink struct {
	apiURL  string
	apiKey  string
	origin  string
	submolt string
	client  *http.Client
	log     logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewWebhookSink creates a sink posting to apiURL (e.g.
// "https://moltbook.zae.life/api/v1") under the given origin identity.
func NewWebhookSink(apiURL, apiKey, origin, submolt string, client *http.Client, log logger.Logger) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &WebhookSink{
		apiURL:  apiURL,
		apiKey:  apiKey,
		origin:  origin,
		submolt: submolt,
		client:  client,
		log:     log,
	}
}

// Emit implements Sink.
func (s *WebhookSink) Emit(ctx context.Context, content string) error {
	token, err := s.identityToken(ctx)
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]string{
		"content": content,
		"origin":  s.origin,
	})
	url := fmt.Sprintf("%s/submolt/%s/post", s.apiURL, s.submolt)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Moltbook-Identity", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("signal delivery failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("signal delivery returned status %d", resp.StatusCode)
	}
	s.log.Debug("report signaled", map[string]any{"submolt": s.submolt})
	return nil
}

// identityToken returns a cached identity token, refreshing it when close
// to expiry.
func (s *WebhookSink) identityToken(ctx context.Context) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("sink API key not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry.Add(-refreshSlack)) {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/me/identity-token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity token exchange failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("identity token exchange returned status %d", resp.StatusCode)
	}

	var body struct {
		IdentityToken string `json:"identity_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("malformed identity token response: %w", err)
	}
	if body.IdentityToken == "" {
		return "", fmt.Errorf("empty identity token")
	}

	s.token = body.IdentityToken
	s.tokenExpiry = time.Now().Add(identityTokenTTL)
	return s.token, nil
}

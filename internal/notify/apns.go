package notify

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"sharedlist-sync-server/pkg/jwt"

	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const (
	apnsProductionEndpoint = "https://api.push.apple.com"
	apnsSandboxEndpoint    = "https://api.sandbox.push.apple.com"

	apnsTokenLifetime = 20 * time.Minute
	apnsTokenRefresh  = 60 * time.Second
)

// TokenLister returns the device tokens subscribed to a list.
type TokenLister interface {
	TokensForList(ctx context.Context, listID string) ([]string, error)
}

type APNsConfig struct {
	TeamID         string
	KeyID          string
	BundleID       string
	PrivateKeyPath string
	UseSandbox     bool
	// Endpoint overrides the host picked by UseSandbox.
	Endpoint      string
	RatePerSecond float64
	Burst         int
}

func (c APNsConfig) configured() bool {
	return c.TeamID != "" && c.KeyID != "" && c.BundleID != "" && c.PrivateKeyPath != ""
}

// APNs sends an alert push to every iOS device subscribed to a list.
type APNs struct {
	cfg      APNsConfig
	endpoint string
	key      *ecdsa.PrivateKey
	tokens   TokenLister
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	jwt      string
	jwtUntil time.Time
}

type APNsOption func(*APNs)

// WithAPNsHTTPClient replaces the HTTP/2 client.
func WithAPNsHTTPClient(c *http.Client) APNsOption {
	return func(a *APNs) { a.client = c }
}

func WithAPNsClock(now func() time.Time) APNsOption {
	return func(a *APNs) { a.now = now }
}

// NewAPNs loads the provider key. With incomplete configuration the platform
// is disabled.
func NewAPNs(cfg APNsConfig, tokens TokenLister, logger *slog.Logger, opts ...APNsOption) (*APNs, error) {
	a := &APNs{
		cfg:    cfg,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
		client: &http.Client{Transport: &http2.Transport{}},
	}
	if !cfg.configured() {
		return a, nil
	}

	pemBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read APNs key: %w", err)
	}
	a.key, err = jwt.ParseSigningKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("apns: %w", err)
	}

	a.endpoint = cfg.Endpoint
	if a.endpoint == "" {
		a.endpoint = apnsProductionEndpoint
		if cfg.UseSandbox {
			a.endpoint = apnsSandboxEndpoint
		}
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	a.limiter = rate.NewLimiter(limit, burst)

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *APNs) Name() string { return "apns" }

func (a *APNs) Enabled() bool { return a.key != nil }

// providerToken returns the cached ES256 provider token, minting a new one
// shortly before the old one expires.
func (a *APNs) providerToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.jwt != "" && now.Before(a.jwtUntil.Add(-apnsTokenRefresh)) {
		return a.jwt, nil
	}

	signed, err := jwt.GenerateProviderToken(a.cfg.TeamID, a.cfg.KeyID, now, a.key)
	if err != nil {
		return "", fmt.Errorf("apns: %w", err)
	}

	a.jwt = signed
	a.jwtUntil = now.Add(apnsTokenLifetime)
	return signed, nil
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type apnsAps struct {
	Alert apnsAlert `json:"alert"`
	Sound string    `json:"sound"`
}

type apnsPayload struct {
	Aps       apnsAps `json:"aps"`
	Type      string  `json:"type"`
	ListID    string  `json:"list_id"`
	LatestRev string  `json:"latest_rev"`
}

func (a *APNs) Send(ctx context.Context, listID string, latestRev int64) error {
	if !a.Enabled() {
		a.logger.Debug("APNs disabled: missing config")
		return nil
	}

	deviceTokens, err := a.tokens.TokensForList(ctx, listID)
	if err != nil {
		return fmt.Errorf("apns: %w", err)
	}
	if len(deviceTokens) == 0 {
		return nil
	}

	bearer, err := a.providerToken()
	if err != nil {
		return err
	}

	body, err := json.Marshal(apnsPayload{
		Aps: apnsAps{
			Alert: apnsAlert{Title: "List updated", Body: "A shared list was modified."},
			Sound: "default",
		},
		Type:      "list_updated",
		ListID:    listID,
		LatestRev: strconv.FormatInt(latestRev, 10),
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, deviceToken := range deviceTokens {
		if err := a.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := a.push(ctx, bearer, deviceToken, body); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *APNs) push(ctx context.Context, bearer, deviceToken string, body []byte) error {
	url := a.endpoint + "/3/device/" + deviceToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", a.cfg.BundleID)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("content-type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("apns request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("apns send to %s failed: %d %s", shortToken(deviceToken), resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// shortToken keeps device tokens out of logs.
func shortToken(t string) string {
	if len(t) <= 8 {
		return t
	}
	return t[:8] + "…"
}

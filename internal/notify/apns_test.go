package notify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sharedlist-sync-server/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens map[string][]string

func (s staticTokens) TokensForList(_ context.Context, listID string) ([]string, error) {
	return s[listID], nil
}

func writeKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "AuthKey.p8")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))
	return key, path
}

type apnsRequest struct {
	path, auth, topic, pushType string
	proto                       int
	payload                     apnsPayload
}

func newAPNsServer(t *testing.T, status func(token string) int) (*httptest.Server, func() []apnsRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []apnsRequest

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := apnsRequest{
			path:     r.URL.Path,
			auth:     r.Header.Get("authorization"),
			topic:    r.Header.Get("apns-topic"),
			pushType: r.Header.Get("apns-push-type"),
			proto:    r.ProtoMajor,
		}
		_ = json.NewDecoder(r.Body).Decode(&rec.payload)
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()

		code := status(strings.TrimPrefix(r.URL.Path, "/3/device/"))
		if code >= 400 {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"reason":"BadDeviceToken"}`))
			return
		}
		w.WriteHeader(code)
	}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)

	return srv, func() []apnsRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]apnsRequest(nil), reqs...)
	}
}

func TestAPNs_SendsToEverySubscribedDevice(t *testing.T) {
	key, path := writeKey(t)
	srv, requests := newAPNsServer(t, func(string) int { return http.StatusOK })

	a, err := NewAPNs(APNsConfig{
		TeamID: "TEAM", KeyID: "KEY", BundleID: "com.example.sharedlist",
		PrivateKeyPath: path, Endpoint: srv.URL,
	}, staticTokens{"l1": {"tok-a", "tok-b"}}, discardLogger(), WithAPNsHTTPClient(srv.Client()))
	require.NoError(t, err)
	require.True(t, a.Enabled())

	require.NoError(t, a.Send(context.Background(), "l1", 9))

	reqs := requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/3/device/tok-a", reqs[0].path)
	assert.Equal(t, "/3/device/tok-b", reqs[1].path)

	for _, r := range reqs {
		assert.Equal(t, 2, r.proto)
		assert.Equal(t, "com.example.sharedlist", r.topic)
		assert.Equal(t, "alert", r.pushType)
		assert.Equal(t, "list_updated", r.payload.Type)
		assert.Equal(t, "l1", r.payload.ListID)
		assert.Equal(t, "9", r.payload.LatestRev)
		assert.Equal(t, "default", r.payload.Aps.Sound)

		require.True(t, strings.HasPrefix(r.auth, "bearer "))
		claims, err := jwt.ValidateProviderToken(strings.TrimPrefix(r.auth, "bearer "), &key.PublicKey)
		require.NoError(t, err)
		assert.Equal(t, "KEY", claims.KeyID)
		assert.Equal(t, "TEAM", claims.Issuer)
	}
}

func TestAPNs_AggregatesPerTokenErrors(t *testing.T) {
	_, path := writeKey(t)
	srv, requests := newAPNsServer(t, func(token string) int {
		if token == "bad" {
			return http.StatusBadRequest
		}
		return http.StatusOK
	})

	a, err := NewAPNs(APNsConfig{
		TeamID: "T", KeyID: "K", BundleID: "b", PrivateKeyPath: path, Endpoint: srv.URL,
	}, staticTokens{"l1": {"bad", "good"}}, discardLogger(), WithAPNsHTTPClient(srv.Client()))
	require.NoError(t, err)

	err = a.Send(context.Background(), "l1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Len(t, requests(), 2, "a failing token must not stop the others")
}

func TestAPNs_ProviderTokenIsCached(t *testing.T) {
	_, path := writeKey(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a, err := NewAPNs(APNsConfig{TeamID: "T", KeyID: "K", BundleID: "b", PrivateKeyPath: path},
		staticTokens{}, discardLogger(), WithAPNsClock(func() time.Time { return now }))
	require.NoError(t, err)

	first, err := a.providerToken()
	require.NoError(t, err)

	now = now.Add(18 * time.Minute)
	second, err := a.providerToken()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	now = now.Add(90 * time.Second)
	third, err := a.providerToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "token must be refreshed within a minute of expiry")
}

func TestAPNs_EndpointSelection(t *testing.T) {
	_, path := writeKey(t)
	cfg := APNsConfig{TeamID: "T", KeyID: "K", BundleID: "b", PrivateKeyPath: path, UseSandbox: true}

	a, err := NewAPNs(cfg, staticTokens{}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, apnsSandboxEndpoint, a.endpoint)

	cfg.UseSandbox = false
	a, err = NewAPNs(cfg, staticTokens{}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, apnsProductionEndpoint, a.endpoint)
}

func TestAPNs_DisabledWithoutConfig(t *testing.T) {
	a, err := NewAPNs(APNsConfig{TeamID: "T"}, staticTokens{}, discardLogger())
	require.NoError(t, err)
	assert.False(t, a.Enabled())
	assert.NoError(t, a.Send(context.Background(), "l1", 1))
}

func TestAPNs_BadKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.p8")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := NewAPNs(APNsConfig{TeamID: "T", KeyID: "K", BundleID: "b", PrivateKeyPath: path}, staticTokens{}, discardLogger())
	assert.Error(t, err)
}

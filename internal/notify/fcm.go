package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope           = "https://www.googleapis.com/auth/firebase.messaging"
	fcmDefaultEndpoint = "https://fcm.googleapis.com"
)

type FCMConfig struct {
	ProjectID string
	// CredentialsFile is a service account JSON. Empty means Application
	// Default Credentials.
	CredentialsFile string
	Endpoint        string
}

// FCM sends a data message to the list's topic through the FCM HTTP v1 API.
type FCM struct {
	projectID string
	endpoint  string
	client    *http.Client
	logger    *slog.Logger
}

// NewFCM resolves service account credentials. With no project id the
// platform is disabled and no credentials are loaded.
func NewFCM(ctx context.Context, cfg FCMConfig, logger *slog.Logger) (*FCM, error) {
	if cfg.ProjectID == "" {
		return &FCM{logger: logger}, nil
	}

	var creds *google.Credentials
	var err error
	if cfg.CredentialsFile != "" {
		var data []byte
		data, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read FCM credentials: %w", err)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, fcmScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, fcmScope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load FCM credentials: %w", err)
	}

	return NewFCMWithTokenSource(cfg.ProjectID, cfg.Endpoint, creds.TokenSource, logger), nil
}

func NewFCMWithTokenSource(projectID, endpoint string, ts oauth2.TokenSource, logger *slog.Logger) *FCM {
	if endpoint == "" {
		endpoint = fcmDefaultEndpoint
	}
	return &FCM{
		projectID: projectID,
		endpoint:  endpoint,
		client:    oauth2.NewClient(context.Background(), ts),
		logger:    logger,
	}
}

func (f *FCM) Name() string { return "fcm" }

func (f *FCM) Enabled() bool { return f.projectID != "" }

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Topic   string            `json:"topic"`
	Data    map[string]string `json:"data"`
	Android fcmAndroid        `json:"android"`
}

type fcmAndroid struct {
	Priority string `json:"priority"`
}

func (f *FCM) Send(ctx context.Context, listID string, latestRev int64) error {
	if !f.Enabled() {
		f.logger.Debug("FCM disabled: FIREBASE_PROJECT_ID not set")
		return nil
	}

	body, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Topic: ListTopic(listID),
		Data: map[string]string{
			"type":       "list_updated",
			"list_id":    listID,
			"latest_rev": strconv.FormatInt(latestRev, 10),
		},
		Android: fcmAndroid{Priority: "high"},
	}})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", f.endpoint, f.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fcm send failed: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// ListTopic maps a list id onto a valid FCM topic name. Every character
// outside [A-Za-z0-9] becomes '_'.
func ListTopic(listID string) string {
	out := make([]byte, 0, len(listID)+5)
	out = append(out, "list_"...)
	for _, r := range listID {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			out = append(out, byte(r))
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 10
)

// FallbackConfig tunes the recovery path. Zero values take the defaults.
type FallbackConfig struct {
	// BaseURL is the server's HTTP base, e.g. "http://localhost:8080".
	BaseURL string
	// PollInterval is the delay between recent-result polls.
	PollInterval time.Duration
	// MaxAttempts caps the polls before falling back to a one-shot upload.
	MaxAttempts int

	HTTPClient *http.Client
	Clock      clock.Clock
}

// FallbackResult is a turn recovered outside the streaming channel.
type FallbackResult struct {
	Transcription string
	Reply         string
	// Source is "poll" when the server had already finished the turn, or
	// "upload" when the recording had to be resubmitted.
	Source string
}

type recentResultsPayload struct {
	Results []struct {
		SessionID     string `json:"session_id"`
		Transcription string `json:"transcription"`
		Reply         string `json:"reply"`
	} `json:"results"`
}

type voiceTurnPayload struct {
	Transcription string `json:"transcription"`
	Reply         string `json:"reply"`
}

// errPrimaryRendered marks a polled result the streaming channel had already
// delivered, so recovery must stand down entirely.
var errPrimaryRendered = errors.New("turn already rendered by the primary path")

// FallbackRecoveryPath recovers a turn after the streaming channel dropped
// mid-flight. The server may well have finished the turn on its own, so the
// recent-results store is polled first; only when polling is exhausted is the
// locally retained recording resubmitted through the one-shot pipeline. At
// most one result is ever delivered.
type FallbackRecoveryPath struct {
	baseURL      string
	pollInterval time.Duration
	maxAttempts  int
	httpClient   *http.Client
	clock        clock.Clock
	logger       *zap.Logger

	sessionID string

	// alreadyRendered reports whether the streaming channel had already shown
	// this transcription. A match means the turn completed on the primary
	// path and recovery stands down with no result and no upload. Nil means
	// nothing was rendered.
	alreadyRendered func(transcription string) bool

	delivered bool
}

// NewFallbackRecoveryPath creates a recovery path for one dropped turn.
func NewFallbackRecoveryPath(cfg FallbackConfig, sessionID string, alreadyRendered func(string) bool, logger *zap.Logger) *FallbackRecoveryPath {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &FallbackRecoveryPath{
		baseURL:         cfg.BaseURL,
		pollInterval:    cfg.PollInterval,
		maxAttempts:     cfg.MaxAttempts,
		httpClient:      cfg.HTTPClient,
		clock:           cfg.Clock,
		logger:          logger,
		sessionID:       sessionID,
		alreadyRendered: alreadyRendered,
	}
}

// Run polls for a server-side result and, failing that, resubmits the
// recording. A nil result with nil error means the primary path had already
// rendered this turn and recovery stood down. Run is not restartable; a
// delivered (or stood-down) turn stays settled.
func (f *FallbackRecoveryPath) Run(ctx context.Context, recording []byte) (*FallbackResult, error) {
	if f.delivered {
		return nil, fmt.Errorf("recovery already delivered a result")
	}

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		result, err := f.poll(ctx)
		if errors.Is(err, errPrimaryRendered) {
			f.delivered = true
			f.logger.Info("Turn already rendered on the streaming channel, standing down",
				zap.String("sessionID", f.sessionID),
				zap.Int("attempt", attempt))
			return nil, nil
		}
		if err != nil {
			f.logger.Warn("Recent-results poll failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if result != nil {
			f.delivered = true
			f.logger.Info("Recovered turn from recent results",
				zap.String("sessionID", f.sessionID),
				zap.Int("attempt", attempt))
			return result, nil
		}

		if attempt < f.maxAttempts {
			timer := f.clock.Timer(f.pollInterval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}

	if len(recording) == 0 {
		return nil, fmt.Errorf("polling exhausted and no recording to resubmit")
	}

	result, err := f.upload(ctx, recording)
	if err != nil {
		return nil, fmt.Errorf("fallback upload failed: %w", err)
	}
	f.delivered = true
	f.logger.Info("Recovered turn via one-shot upload",
		zap.String("sessionID", f.sessionID))
	return result, nil
}

// poll checks the recent-results store for our session's finished turn.
func (f *FallbackRecoveryPath) poll(ctx context.Context) (*FallbackResult, error) {
	url := f.baseURL + "/recent-transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload recentResultsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	// Results arrive newest first; the first entry for our session decides.
	for _, r := range payload.Results {
		if r.SessionID != f.sessionID {
			continue
		}
		if f.alreadyRendered != nil && f.alreadyRendered(r.Transcription) {
			return nil, errPrimaryRendered
		}
		return &FallbackResult{
			Transcription: r.Transcription,
			Reply:         r.Reply,
			Source:        "poll",
		}, nil
	}
	return nil, nil
}

// upload resubmits the retained recording through the one-shot pipeline.
func (f *FallbackRecoveryPath) upload(ctx context.Context, recording []byte) (*FallbackResult, error) {
	url := fmt.Sprintf("%s/agent/chat/%s", f.baseURL, f.sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(recording))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload voiceTurnPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &FallbackResult{
		Transcription: payload.Transcription,
		Reply:         payload.Reply,
		Source:        "upload",
	}, nil
}

package motion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// HTTPActuatorConfig describes one axis of a motion controller that
// speaks the plain JSON protocol our beamline bridges expose:
//
//	PUT {base}/axes/{name}/target  {"position": 1.5}
//	GET {base}/axes/{name}         -> {"position": 1.5, "moving": false}
type HTTPActuatorConfig struct {
	Name    string
	BaseURL string
	// PollInterval spaces the settle polls. Defaults to 100ms.
	PollInterval time.Duration
	// SettleTimeout bounds how long a move may take to land.
	// Defaults to 30s.
	SettleTimeout time.Duration
	// RequestTimeout bounds a single request. Defaults to 5s.
	RequestTimeout time.Duration
}

// HTTPActuator drives an axis over HTTP. Moves are issued exactly once;
// a failed request surfaces as a motion error rather than being retried,
// since re-issuing a move against unknown hardware state is worse than
// aborting the run.
type HTTPActuator struct {
	cfg    HTTPActuatorConfig
	client *http.Client
}

type axisState struct {
	Position float64 `json:"position"`
	Moving   bool    `json:"moving"`
}

// NewHTTPActuator builds the client for one remote axis.
func NewHTTPActuator(cfg HTTPActuatorConfig) (*HTTPActuator, error) {
	if cfg.Name == "" {
		return nil, apperrors.NewInvalidConfig("http actuator requires a name", nil)
	}
	if cfg.BaseURL == "" {
		return nil, apperrors.NewInvalidConfig(
			fmt.Sprintf("axis %s: base url must not be empty", cfg.Name), nil)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &HTTPActuator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

func (a *HTTPActuator) Name() string {
	return a.cfg.Name
}

func (a *HTTPActuator) MoveTo(ctx context.Context, position float64) error {
	body, err := json.Marshal(map[string]float64{"position": position})
	if err != nil {
		return apperrors.NewInternal("encoding move request failed", err)
	}

	url := fmt.Sprintf("%s/axes/%s/target", a.cfg.BaseURL, a.cfg.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInvalidConfig(fmt.Sprintf("axis %s: invalid base url", a.cfg.Name), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.NewMotion(fmt.Sprintf("axis %s: move request failed", a.cfg.Name), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewMotion(
			fmt.Sprintf("axis %s: controller rejected move with status %d", a.cfg.Name, resp.StatusCode), nil)
	}
	return nil
}

// WaitSettled polls the axis until the controller reports it stopped.
func (a *HTTPActuator) WaitSettled(ctx context.Context) error {
	deadline := time.Now().Add(a.cfg.SettleTimeout)
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		state, err := a.fetchState(ctx)
		if err != nil {
			return err
		}
		if !state.Moving {
			return nil
		}
		if time.Now().After(deadline) {
			return apperrors.NewMotionTimeout(
				fmt.Sprintf("axis %s: still moving after %s", a.cfg.Name, a.cfg.SettleTimeout), nil)
		}

		select {
		case <-ctx.Done():
			return apperrors.NewCanceled(fmt.Sprintf("axis %s: settle interrupted", a.cfg.Name), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *HTTPActuator) Position() (float64, error) {
	state, err := a.fetchState(context.Background())
	if err != nil {
		return 0, err
	}
	return state.Position, nil
}

func (a *HTTPActuator) fetchState(ctx context.Context) (*axisState, error) {
	url := fmt.Sprintf("%s/axes/%s", a.cfg.BaseURL, a.cfg.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewInvalidConfig(fmt.Sprintf("axis %s: invalid base url", a.cfg.Name), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewMotion(fmt.Sprintf("axis %s: state request failed", a.cfg.Name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewMotion(
			fmt.Sprintf("axis %s: state request returned status %d", a.cfg.Name, resp.StatusCode), nil)
	}

	var state axisState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, apperrors.NewMotion(fmt.Sprintf("axis %s: decoding state failed", a.cfg.Name), err)
	}
	return &state, nil
}

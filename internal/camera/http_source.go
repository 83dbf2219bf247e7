package camera

import (
	"context"
	"crypto/tls"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// HTTPConfig configures a snapshot camera exposed over HTTP.
type HTTPConfig struct {
	// Name identifies the camera in rig configs and logs.
	Name string
	// URL is the snapshot endpoint returning one encoded frame per GET.
	URL string
	// FrameInterval is the minimum spacing between captures. Zero
	// disables pacing.
	FrameInterval time.Duration
	// Timeout bounds a single snapshot request. Defaults to 30s.
	Timeout time.Duration
	// RetryDelay is the base backoff between transient-failure attempts.
	// Defaults to 1s.
	RetryDelay time.Duration
}

// HTTPSource fetches frames from a snapshot endpoint. Transient network
// and 5xx failures are retried up to three times inside a single capture;
// 4xx responses fail immediately.
type HTTPSource struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPSource builds a snapshot camera client with a transport tuned
// for repeated single-frame downloads.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, apperrors.NewInvalidConfig("camera url must not be empty", nil)
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	transport := &http.Transport{
		// Connection pooling sized for one camera polled repeatedly
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableCompression:     false,
		MaxResponseHeaderBytes: 4096,

		// Beamline camera servers run self-signed certs
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}

	src := &HTTPSource{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
	if cfg.FrameInterval > 0 {
		src.limiter = rate.NewLimiter(rate.Every(cfg.FrameInterval), 1)
	}
	return src, nil
}

func (s *HTTPSource) Name() string {
	return s.cfg.Name
}

// Capture fetches and decodes the next snapshot, pacing requests so the
// camera server is never polled faster than FrameInterval.
func (s *HTTPSource) Capture(ctx context.Context) (image.Image, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewCanceled("frame pacing interrupted", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, apperrors.NewInvalidConfig("invalid camera url", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "psbeam-focusd/1.0")

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err = s.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("snapshot returned status %d", resp.StatusCode)
			status := resp.StatusCode
			resp.Body.Close()
			resp = nil
			// 4xx means the request itself is wrong; retrying cannot help
			if status >= 400 && status < 500 {
				break
			}
		}

		if attempt < 2 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewCanceled("capture interrupted", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * s.cfg.RetryDelay):
			}
		}
	}

	if resp == nil {
		return nil, apperrors.NewAcquisition(
			fmt.Sprintf("camera %s: snapshot fetch failed", s.cfg.Name), lastErr)
	}
	defer resp.Body.Close()

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, apperrors.NewAcquisition(
			fmt.Sprintf("camera %s: snapshot decode failed", s.cfg.Name), err)
	}
	return img, nil
}

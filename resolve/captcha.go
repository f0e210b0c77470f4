package resolve

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/models"
)

// CaptchaOps is what the solver needs from the challenge page.
type CaptchaOps interface {
	// ImageJPEG screenshots the challenge image as a JPEG no larger than
	// maxBytes where possible.
	ImageJPEG(maxBytes int) ([]byte, error)

	// Enter types the answer into the challenge input and submits the form.
	Enter(answer string) error

	// ChallengeGone reports whether the challenge input has disappeared.
	ChallengeGone() bool
}

// Solver submits challenge images to an external text-recognition service
// and types the answer back into the page. The whole strategy is optional:
// without a credential it reports itself disabled and the caller degrades.
type Solver struct {
	cfg    config.SolverConfig
	client *http.Client
}

// NewSolver creates a Solver.
func NewSolver(cfg config.SolverConfig) *Solver {
	return &Solver{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether a solver credential was configured.
func (s *Solver) Enabled() bool {
	return s.cfg.APIKey != ""
}

type submitResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve runs the full challenge round trip: screenshot, submit, poll for the
// recognized text, type it in, and verify the challenge cleared. Returns
// false with a nil error when the service answered but the page still shows
// a challenge; that is a degraded outcome, not a failure.
func (s *Solver) Solve(ctx context.Context, ops CaptchaOps) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	image, err := ops.ImageJPEG(s.cfg.MaxImageSize)
	if err != nil {
		return false, models.NewFetchError(models.ErrCodeBlocked, "failed to capture challenge image", err)
	}

	taskID, err := s.submit(ctx, image)
	if err != nil {
		return false, err
	}

	answer, err := s.poll(ctx, taskID)
	if err != nil {
		return false, err
	}
	if answer == "" {
		return false, nil
	}

	if err := ops.Enter(answer); err != nil {
		return false, models.NewFetchError(models.ErrCodeBlocked, "failed to enter challenge answer", err)
	}
	return ops.ChallengeGone(), nil
}

// submit uploads the image and returns the service's task id.
func (s *Solver) submit(ctx context.Context, image []byte) (string, error) {
	form := url.Values{}
	form.Set("key", s.cfg.APIKey)
	form.Set("method", "base64")
	form.Set("body", base64.StdEncoding.EncodeToString(image))
	form.Set("json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/in.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", models.NewFetchError(models.ErrCodeInternal, "failed to build solver request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", models.NewFetchError(models.ErrCodeBlocked, "solver submit failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewFetchError(models.ErrCodeBlocked, "failed to read solver response", err)
	}

	var parsed submitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", models.NewFetchError(models.ErrCodeBlocked, "solver returned malformed response", err)
	}
	if parsed.Status != 1 {
		return "", models.NewFetchError(models.ErrCodeBlocked,
			fmt.Sprintf("solver rejected submission: %s", parsed.Request), nil)
	}
	return parsed.Request, nil
}

// poll asks for the recognized text until it is ready or the round budget
// runs out. An exhausted budget returns empty with no error.
func (s *Solver) poll(ctx context.Context, taskID string) (string, error) {
	query := url.Values{}
	query.Set("key", s.cfg.APIKey)
	query.Set("action", "get")
	query.Set("id", taskID)
	query.Set("json", "1")
	pollURL := s.cfg.BaseURL + "/res.php?" + query.Encode()

	for round := 0; round < s.cfg.MaxRounds; round++ {
		select {
		case <-time.After(s.cfg.PollInterval):
		case <-ctx.Done():
			return "", models.NewFetchError(models.ErrCodeTimeout, "challenge solving timed out", ctx.Err())
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return "", models.NewFetchError(models.ErrCodeInternal, "failed to build solver poll", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			slog.Warn("solver poll failed", "round", round, "error", err)
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			continue
		}

		var parsed submitResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			continue
		}
		if parsed.Status == 1 {
			return parsed.Request, nil
		}
		if parsed.Request != "CAPCHA_NOT_READY" {
			return "", models.NewFetchError(models.ErrCodeBlocked,
				fmt.Sprintf("solver failed: %s", parsed.Request), nil)
		}
	}
	return "", nil
}

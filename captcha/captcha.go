// Package captcha verifies reCAPTCHA v3 tokens submitted with upload requests.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/logging"
)

// DefaultVerifyURL is Google's reCAPTCHA verification endpoint.
const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// DefaultMinScore is the lowest score accepted as human.
const DefaultMinScore = 0.5

// Sentinel errors for package captcha.
var (
	ErrRejected    = errors.New("security verification failed")
	ErrMissing     = errors.New("captcha token is missing")
	ErrUnavailable = errors.New("captcha verification unavailable")
)

// Checker verifies a client's captcha token.
type Checker interface {
	Check(ctx context.Context, token, remoteIP string) error
}

// Response is the verification endpoint's answer.
type Response struct {
	Success     bool     `json:"success"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks tokens against the reCAPTCHA API. A Verifier without a
// secret accepts every token, for local development.
type Verifier struct {
	secret   string
	url      string
	minScore float64
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[*Response]
	log      *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithURL overrides the verification endpoint.
func WithURL(u string) Option {
	return func(v *Verifier) { v.url = u }
}

// WithMinScore overrides the minimum accepted score.
func WithMinScore(score float64) Option {
	return func(v *Verifier) { v.minScore = score }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) { v.log = l }
}

// NewVerifier returns a Verifier using secret.
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:   secret,
		url:      DefaultVerifyURL,
		minScore: DefaultMinScore,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = logging.OrNop(v.log)
	v.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:    "recaptcha",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// A caller giving up says nothing about the API's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			v.log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return v
}

// Enabled reports whether tokens are actually verified.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// Check verifies token. It returns ErrRejected when the API reports failure
// or a score below the minimum and ErrUnavailable when the API cannot be
// reached.
func (v *Verifier) Check(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return ErrMissing
	}
	resp, err := v.breaker.Execute(func() (*Response, error) {
		return v.verify(ctx, token, remoteIP)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !resp.Success || resp.Score < v.minScore {
		v.log.Info("captcha rejected",
			zap.Bool("success", resp.Success),
			zap.Float64("score", resp.Score),
			zap.Strings("error_codes", resp.ErrorCodes),
		)
		return fmt.Errorf("%w: success=%t score=%.2f", ErrRejected, resp.Success, resp.Score)
	}
	return nil
}

func (v *Verifier) verify(ctx context.Context, token, remoteIP string) (*Response, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("verify endpoint returned %s", res.Status)
	}
	var out Response
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &out, nil
}

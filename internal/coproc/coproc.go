// Package coproc forwards computation payloads to the external risk
// coprocessor.
//
// The coprocessor operates on ciphertext handles only; it replies later
// through the signed callback endpoint, never through this channel's
// response. The HTTP channel therefore treats any 2xx as "accepted" and
// carries no result parsing at all.
package coproc

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hydroward/damtwin/internal/assessment"
	"github.com/hydroward/damtwin/internal/retry"
)

var (
	dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "damtwin",
		Subsystem: "coproc",
		Name:      "dispatch_total",
		Help:      "Total coprocessor dispatch attempts by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(dispatchTotal)
}

// HTTPChannel implements assessment.Channel over HTTP POST. Payloads are
// signed with a shared HMAC secret so the coprocessor can reject forgeries.
// Transient failures are retried with backoff; a 4xx response is permanent.
type HTTPChannel struct {
	url         string
	secret      string
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

// NewHTTPChannel creates an HTTP channel to the coprocessor endpoint.
func NewHTTPChannel(url, secret string, logger *slog.Logger) *HTTPChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPChannel{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
	}
}

// Compute posts the payload to the coprocessor. A 2xx response means the
// computation was accepted; the result arrives later via the callback.
func (c *HTTPChannel) Compute(ctx context.Context, p *assessment.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		dispatchTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = retry.Do(ctx, c.maxAttempts, c.baseDelay, func() error {
		return c.post(ctx, p.RequestID, body)
	})
	if err != nil {
		dispatchTotal.WithLabelValues("error").Inc()
		return err
	}

	dispatchTotal.WithLabelValues("accepted").Inc()
	c.logger.Debug("payload dispatched", "request_id", p.RequestID)
	return nil
}

func (c *HTTPChannel) post(ctx context.Context, requestID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DamTwin-Request", requestID)
	if c.secret != "" {
		req.Header.Set("X-DamTwin-Signature", c.sign(body))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post payload: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		dispatchTotal.WithLabelValues("rejected").Inc()
		return retry.Permanent(fmt.Errorf("coprocessor returned status %d", resp.StatusCode))
	default:
		return fmt.Errorf("coprocessor returned status %d", resp.StatusCode)
	}
}

func (c *HTTPChannel) sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// NoopChannel implements assessment.Channel by accepting every payload
// without forwarding it. Used when no coprocessor URL is configured:
// results are then delivered only by hand or by external replay tooling.
type NoopChannel struct{}

func (NoopChannel) Compute(context.Context, *assessment.Payload) error {
	return nil
}

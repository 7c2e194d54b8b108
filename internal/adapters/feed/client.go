// Package feed es el cliente HTTP de la fuente de datos que responde
// preguntas del oráculo. Lo usa el provider, nunca el motor de settlement.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

const (
	defaultRatePerSec = 10
	defaultBurst      = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// answerResponse es el JSON que devuelve GET {base}/answers/{id}.
type answerResponse struct {
	Confidence uint8  `json:"confidence"`
	Bool       bool   `json:"bool"`
	Numeric    uint64 `json:"numeric"`
	Text       string `json:"text"`
	Source     string `json:"source"`
}

// Client consulta la fuente con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	retry   time.Duration
}

var _ ports.AnswerFeed = (*Client)(nil)

// NewClient crea un Client contra base. ratePerSec <= 0 usa el default.
func NewClient(base string, ratePerSec float64) *Client {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    strings.TrimRight(base, "/"),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), defaultBurst),
		retry:   baseRetryWait,
	}
}

// WithRetryWait cambia la espera base del backoff (tests).
func (c *Client) WithRetryWait(d time.Duration) *Client {
	c.retry = d
	return c
}

// FetchAnswer pide la respuesta de q. 404 → domain.ErrNotFound.
func (c *Client) FetchAnswer(ctx context.Context, q domain.Question) (domain.AnswerPayload, error) {
	u := fmt.Sprintf("%s/answers/%s?hash=%s", c.base, strconv.FormatUint(q.ID, 10), url.QueryEscape(q.ContentHash))

	var resp answerResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return domain.AnswerPayload{}, fmt.Errorf("feed.FetchAnswer %d: %w", q.ID, err)
	}
	return domain.AnswerPayload{
		Confidence: resp.Confidence,
		Bool:       resp.Bool,
		Numeric:    resp.Numeric,
		Text:       resp.Text,
		Source:     resp.Source,
	}, nil
}

// get hace un GET con rate limiting y retries con backoff exponencial.
func (c *Client) get(ctx context.Context, u string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			slog.Warn("rate limited by answer feed", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue

		case resp.StatusCode >= 500:
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue

		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retry
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

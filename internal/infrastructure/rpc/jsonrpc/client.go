// Package jsonrpc is a JSON-RPC 2.0 over HTTP client shared by the chain
// adapters. Transient failures are retried with exponential backoff behind a
// circuit breaker and a client side rate limit.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/circuitbreaker"
	"go.uber.org/ratelimit"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 5
	defaultRateLimit  = 20
)

// RPCError is an error object returned by the node. It is never retried.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type Config struct {
	URL string
	// Timeout bounds each single HTTP round trip.
	Timeout time.Duration
	// MaxRetries bounds the attempts made for transient failures.
	MaxRetries uint64
	// InitialInterval is the first backoff interval.
	InitialInterval time.Duration
	// RateLimit is the max number of requests per second, negative for no
	// limit.
	RateLimit  int
	HTTPClient *http.Client
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type client struct {
	url             string
	timeout         time.Duration
	maxRetries      uint64
	initialInterval time.Duration
	http            *http.Client
	cb              *gobreaker.CircuitBreaker
	limiter         ratelimit.Limiter
	nextID          uint64
}

// NewClient returns a ChainRPC talking to the node at cfg.URL.
func NewClient(cfg Config) (ports.ChainRPC, error) {
	if len(cfg.URL) <= 0 {
		return nil, fmt.Errorf("missing rpc url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	limiter := ratelimit.NewUnlimited()
	switch {
	case cfg.RateLimit > 0:
		limiter = ratelimit.New(cfg.RateLimit)
	case cfg.RateLimit == 0:
		limiter = ratelimit.New(defaultRateLimit)
	}

	return &client{
		url:             cfg.URL,
		timeout:         cfg.Timeout,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		http:            cfg.HTTPClient,
		cb:              circuitbreaker.NewCircuitBreaker(cfg.URL, isSuccessful),
		limiter:         limiter,
	}, nil
}

func (c *client) Call(
	ctx context.Context, result interface{}, method string, params ...interface{},
) error {
	if params == nil {
		params = make([]interface{}, 0)
	}

	attempt := 0
	op := func() error {
		attempt++
		c.limiter.Take()

		_, err := c.cb.Execute(func() (interface{}, error) {
			return nil, c.do(ctx, result, method, params)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrNodeUnavailable, err))
		}
		if !domain.IsTransient(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		log.WithError(err).Debugf("rpc %s attempt %d failed, retrying", method, attempt)
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.initialInterval
	exp.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(exp, c.maxRetries), ctx)

	return backoff.Retry(op, bo)
}

func (c *client) do(
	ctx context.Context, result interface{}, method string, params []interface{},
) error {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", domain.ErrRPCTimeout, method)
		}
		return fmt.Errorf("%w: %s", domain.ErrNodeUnavailable, err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrNodeUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf(
			"%w: %s returned %d", domain.ErrNodeUnavailable, method, resp.StatusCode,
		)
	}

	var rpcResp response
	if err := json.Unmarshal(buf, &rpcResp); err != nil {
		return fmt.Errorf("invalid rpc response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil {
		return nil
	}
	if len(rpcResp.Result) <= 0 || string(rpcResp.Result) == "null" {
		// Leave result untouched so callers can detect a missing value,
		// ie. a receipt not yet available.
		return nil
	}
	return json.Unmarshal(rpcResp.Result, result)
}

// isSuccessful tells the circuit breaker that node-level rejections come
// from a healthy node.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

package lcd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/cosmonauts/whalewatching/internal/ratelimit"
)

var (
	// ErrNotFound is the LCD's "not found" query error for anything but a
	// cw721 token, e.g. an unknown contract.
	ErrNotFound = errors.New("lcd: not found")
	// ErrNotMinted is the cw721 TokenInfo "not found" error: the contract has
	// no record of the token.
	ErrNotMinted = errors.New("lcd: token not minted")
)

// StatusError is a non-2xx LCD response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lcd %s: status %d: %s", e.Op, e.Code, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	base       string
	client     *http.Client
	limiter    *ratelimit.Limiter
	maxRetries uint
	initial    time.Duration
	log        *zap.Logger
}

type Option func(*Client)

// WithLimiter paces every request through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n uint) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) { c.initial = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(base string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		client:     httpClient,
		maxRetries: 3,
		initial:    250 * time.Millisecond,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LatestHeight returns the latest block height and time from LCD.
func (c *Client) LatestHeight(ctx context.Context) (int64, time.Time, error) {
	u := c.base + "/cosmos/base/tendermint/v1beta1/blocks/latest"
	var out struct {
		Block struct {
			Header struct {
				Height string    `json:"height"`
				Time   time.Time `json:"time"`
			} `json:"header"`
		} `json:"block"`
	}
	if err := c.getJSON(ctx, "latest block", u, &out); err != nil {
		return 0, time.Time{}, err
	}
	h, err := strconv.ParseInt(out.Block.Header.Height, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("lcd latest block: bad height %q: %w", out.Block.Header.Height, err)
	}
	return h, out.Block.Header.Time, nil
}

// SmartQuery runs a CosmWasm smart query against contract and decodes the
// response envelope into out.
func (c *Client) SmartQuery(ctx context.Context, contract string, query any, out any) error {
	u, err := c.smartURL(contract, query)
	if err != nil {
		return err
	}
	return c.getJSON(ctx, "smart query", u, out)
}

// MinterConfig returns the sg721 contract address configured on a minter.
func (c *Client) MinterConfig(ctx context.Context, minter string) (string, error) {
	var out struct {
		Data struct {
			SG721Address string `json:"sg721_address"`
		} `json:"data"`
	}
	if err := c.SmartQuery(ctx, minter, map[string]any{"config": struct{}{}}, &out); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotMinted) {
			return "", fmt.Errorf("lcd minter config %s: unknown contract: %w", minter, err)
		}
		return "", err
	}
	if out.Data.SG721Address == "" {
		return "", fmt.Errorf("lcd minter config %s: missing sg721_address", minter)
	}
	return out.Data.SG721Address, nil
}

// OwnerOf returns the current owner of tokenID on a cw721 contract, or
// ErrNotMinted when the contract does not know the token. A 2xx answer
// without data.owner is an error.
func (c *Client) OwnerOf(ctx context.Context, contract string, tokenID int) (string, error) {
	query := map[string]any{"owner_of": map[string]string{"token_id": strconv.Itoa(tokenID)}}
	var out struct {
		Data *struct {
			Owner string `json:"owner"`
		} `json:"data"`
	}
	if err := c.SmartQuery(ctx, contract, query, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("lcd owner_of %s: %w", contract, err)
		}
		return "", err
	}
	if out.Data == nil || out.Data.Owner == "" {
		return "", errors.New("lcd owner_of: missing data.owner")
	}
	return out.Data.Owner, nil
}

func (c *Client) smartURL(contract string, query any) (string, error) {
	b, err := json.Marshal(query)
	if err != nil {
		return "", fmt.Errorf("lcd smart query: encode: %w", err)
	}
	q := base64.URLEncoding.EncodeToString(b)
	return c.base + "/cosmwasm/wasm/v1/contract/" + url.PathEscape(contract) + "/smart/" + q, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = 5 * time.Second
	return b
}

// getJSON performs a paced GET with bounded retries. Non-retryable failures
// are returned unwrapped.
func (c *Client) getJSON(ctx context.Context, what, u string, out any) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.getOnce(ctx, what, u, out)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.log.Debug("lcd retry", zap.String("op", what), zap.Duration("in", d), zap.Error(err))
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, what, u string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		if msg, ok := queryError(b); ok && strings.Contains(msg, "not found") {
			if strings.Contains(msg, "TokenInfo") {
				return backoff.Permanent(ErrNotMinted)
			}
			return backoff.Permanent(ErrNotFound)
		}
		se := &StatusError{Op: what, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		if !se.Temporary() {
			return backoff.Permanent(se)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				return backoff.RetryAfter(secs)
			}
		}
		return se
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("lcd %s: decode: %w", what, err))
	}
	return nil
}

// queryError extracts the message of a gRPC gateway error body. A missing
// cw721 token reads "cw721_base::state::TokenInfo<...> not found: ...", an
// unknown contract "contract stars1...: not found".
func queryError(body []byte) (string, bool) {
	var e struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		return "", false
	}
	return e.Message, true
}

package lcd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmonauts/whalewatching/internal/lcdtest"
	"github.com/cosmonauts/whalewatching/internal/ratelimit"
)

const (
	minter = "stars18tj7yvh7qxv29wtr4angy4gqycrrj9e5j9susaes7vd4tqafzthq5h2m8r"
	sg721  = "stars1fqsqgjlurc7z2sntulfa0f9alk2ke5npyxrze9deq7lujas7m3ss7vq2fe"
	owner  = "stars1u2cup60zf0dujuhd4sth09gvdc383p0jguaqp3"
)

func TestSmartURLMatchesConfigQuery(t *testing.T) {
	c := NewClient("https://rest.example/", nil)
	u, err := c.smartURL(minter, map[string]any{"config": struct{}{}})
	require.NoError(t, err)
	assert.Equal(t, "https://rest.example/cosmwasm/wasm/v1/contract/"+minter+"/smart/eyJjb25maWciOnt9fQ==", u)
}

func TestMinterConfigAndOwnerOf(t *testing.T) {
	srv := lcdtest.New()
	defer srv.Close()
	srv.AddCollection(minter, sg721, map[int]string{1: owner})

	c := NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	got, err := c.MinterConfig(ctx, minter)
	require.NoError(t, err)
	assert.Equal(t, sg721, got)

	o, err := c.OwnerOf(ctx, sg721, 1)
	require.NoError(t, err)
	assert.Equal(t, owner, o)

	_, err = c.OwnerOf(ctx, sg721, 2)
	assert.ErrorIs(t, err, ErrNotMinted)
}

func TestMinterConfigUnknown(t *testing.T) {
	srv := lcdtest.New()
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), WithMaxRetries(0))
	_, err := c.MinterConfig(context.Background(), minter)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotMinted)
}

func TestOwnerOfMissingOwnerIsAnError(t *testing.T) {
	for _, body := range []string{`{}`, `{"data":null}`, `{"data":{}}`, `{"data":{"owner":""}}`, `{"result":{"owner":"x"}}`} {
		t.Run(body, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte(body))
			}))
			defer ts.Close()

			c := NewClient(ts.URL, ts.Client(), WithInitialBackoff(time.Millisecond))
			_, err := c.OwnerOf(context.Background(), sg721, 7)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotMinted)
			assert.Contains(t, err.Error(), "missing data.owner")
			assert.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestOwnerOfUnknownContractIsNotUnminted(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 2, "message": "contract " + sg721 + ": not found: unknown request"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, ts.Client(), WithInitialBackoff(time.Millisecond))
	_, err := c.OwnerOf(context.Background(), sg721, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotMinted)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRetryOnUnavailable(t *testing.T) {
	srv := lcdtest.New()
	defer srv.Close()
	srv.AddCollection(minter, sg721, map[int]string{3: owner})
	srv.FailToken(sg721, 3, http.StatusServiceUnavailable, 2)

	c := NewClient(srv.URL, srv.Client(), WithMaxRetries(3), WithInitialBackoff(time.Millisecond))
	o, err := c.OwnerOf(context.Background(), sg721, 3)
	require.NoError(t, err)
	assert.Equal(t, owner, o)
	assert.EqualValues(t, 3, srv.Requests())
}

func TestRetriesExhausted(t *testing.T) {
	srv := lcdtest.New()
	defer srv.Close()
	srv.AddCollection(minter, sg721, map[int]string{3: owner})
	srv.FailToken(sg721, 3, http.StatusBadGateway, -1)

	c := NewClient(srv.URL, srv.Client(), WithMaxRetries(2), WithInitialBackoff(time.Millisecond))
	_, err := c.OwnerOf(context.Background(), sg721, 3)
	var se *StatusError
	require.True(t, errors.As(err, &se), "want StatusError, got %v", err)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.EqualValues(t, 3, srv.Requests())
}

func TestBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 3, "message": "invalid query"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, ts.Client(), WithMaxRetries(5), WithInitialBackoff(time.Millisecond))
	_, err := c.OwnerOf(context.Background(), sg721, 1)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Temporary())
	assert.EqualValues(t, 1, calls.Load())
}

func TestMalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, ts.Client())
	_, err := c.MinterConfig(context.Background(), minter)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode"), err.Error())
}

func TestLatestHeight(t *testing.T) {
	srv := lcdtest.New()
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	h, bt, err := c.LatestHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.Height, h)
	assert.True(t, bt.Equal(srv.BlockTime))
}

func TestLimiterCancelled(t *testing.T) {
	srv := lcdtest.New()
	defer srv.Close()
	lim := ratelimit.New(1, 1)
	defer lim.Close()
	require.NoError(t, lim.Wait(context.Background()))

	c := NewClient(srv.URL, srv.Client(), WithLimiter(lim))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, _, err := c.LatestHeight(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 0, srv.Requests())
}

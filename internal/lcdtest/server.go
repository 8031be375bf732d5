// Package lcdtest provides an in-process fake of the Stargaze LCD endpoints
// the raffle uses.
package lcdtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const notFoundMessage = "cw721_base::state::TokenInfo<cosmwasm_std::results::empty::Empty> not found: query wasm contract failed: unknown request"

type failure struct {
	status int
	times  int // remaining; negative means forever
}

type Server struct {
	*httptest.Server

	Height    int64
	BlockTime time.Time

	requests atomic.Int64

	mu       sync.Mutex
	minters  map[string]string
	owners   map[string]map[int]string
	failures map[string]map[int]*failure
}

func New() *Server {
	s := &Server{
		Height:    1234567,
		BlockTime: time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC),
		minters:   make(map[string]string),
		owners:    make(map[string]map[int]string),
		failures:  make(map[string]map[int]*failure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddCollection registers a minter pointing at sg721 with the given owners.
// Token ids missing from owners answer as not minted.
func (s *Server) AddCollection(minter, sg721 string, owners map[int]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minters[minter] = sg721
	cp := make(map[int]string, len(owners))
	for k, v := range owners {
		cp[k] = v
	}
	s.owners[sg721] = cp
}

// FailToken makes owner_of for id on sg721 answer with status for the next
// times requests (forever when times < 0).
func (s *Server) FailToken(sg721 string, id, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[sg721] == nil {
		s.failures[sg721] = make(map[int]*failure)
	}
	s.failures[sg721][id] = &failure{status: status, times: times}
}

// Requests returns how many requests the server has answered.
func (s *Server) Requests() int64 { return s.requests.Load() }

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if r.URL.Path == "/cosmos/base/tendermint/v1beta1/blocks/latest" {
		writeJSON(w, http.StatusOK, map[string]any{
			"block": map[string]any{
				"header": map[string]any{"height": strconv.FormatInt(s.Height, 10), "time": s.BlockTime},
			},
		})
		return
	}
	const prefix = "/cosmwasm/wasm/v1/contract/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if len(parts) != 3 || parts[1] != "smart" {
		http.NotFound(w, r)
		return
	}
	contract := parts[0]
	raw, err := base64.URLEncoding.DecodeString(parts[2])
	if err != nil {
		if raw, err = base64.StdEncoding.DecodeString(parts[2]); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": "invalid query data"})
			return
		}
	}
	var q struct {
		Config  *struct{} `json:"config"`
		OwnerOf *struct {
			TokenID string `json:"token_id"`
		} `json:"owner_of"`
	}
	if err := json.Unmarshal(raw, &q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case q.Config != nil:
		sg, ok := s.minters[contract]
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"code": 2, "message": fmt.Sprintf("contract %s: not found: unknown request", contract),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"sg721_address": sg}})
	case q.OwnerOf != nil:
		id, err := strconv.Atoi(q.OwnerOf.TokenID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": "bad token id"})
			return
		}
		if f := s.failures[contract][id]; f != nil && f.times != 0 {
			if f.times > 0 {
				f.times--
			}
			writeJSON(w, f.status, map[string]any{"code": 13, "message": "injected failure"})
			return
		}
		owner, ok := s.owners[contract][id]
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"code": 2, "message": notFoundMessage, "details": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"owner": owner, "approvals": []any{}}})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 3, "message": "unknown query"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package raffle

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cosmonauts/whalewatching/pkg/boost"
	"github.com/cosmonauts/whalewatching/pkg/holders"
	"github.com/cosmonauts/whalewatching/pkg/leaderboard"
	"github.com/cosmonauts/whalewatching/pkg/types"
)

// Chain reports the block the run is pinned to.
type Chain interface {
	LatestHeight(ctx context.Context) (int64, time.Time, error)
}

// CollectionResolver resolves one collection's owners.
type CollectionResolver interface {
	ResolveCollection(ctx context.Context, c types.Collection) (*holders.Result, error)
}

// Progress observes per-collection resolution. Calls for different
// collections may interleave when collections resolve in parallel.
type Progress interface {
	Start(c types.Collection)
	Done(c types.Collection, s types.CollectionSummary, err error)
}

type Options struct {
	// Parallel resolves all collections at once.
	Parallel bool
	Progress Progress
	// Now stamps GeneratedAt; defaults to time.Now.
	Now func() time.Time
}

type Computer struct {
	chain       Chain
	resolver    CollectionResolver
	engine      *boost.Engine
	collections []types.Collection
	opt         Options
	log         *zap.Logger
}

func NewComputer(chain Chain, r CollectionResolver, e *boost.Engine, collections []types.Collection, opt Options, log *zap.Logger) *Computer {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Computer{chain: chain, resolver: r, engine: e, collections: collections, opt: opt, log: log}
}

// Compute resolves every collection at the latest height and builds the
// leaderboard. Any resolution failure aborts the run. A run in which nobody
// holds a primary token yields a report with no rows.
func (c *Computer) Compute(ctx context.Context) (*types.Report, error) {
	runID := uuid.NewString()
	log := c.log.With(zap.String("run_id", runID))

	primaryIdx := -1
	for i, col := range c.collections {
		if col.Role == types.RolePrimary {
			primaryIdx = i
			break
		}
	}
	if primaryIdx < 0 {
		return nil, errors.New("raffle: no primary collection configured")
	}

	height, blockTime, err := c.chain.LatestHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest height: %w", err)
	}
	log.Info("computing leaderboard",
		zap.Int64("height", height),
		zap.Int("collections", len(c.collections)),
		zap.Float64("max_boost", c.engine.Max()),
	)

	results := make([]*holders.Result, len(c.collections))
	summaries := make([]types.CollectionSummary, len(c.collections))
	if c.opt.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range c.collections {
			g.Go(func() error {
				var err error
				results[i], summaries[i], err = c.resolve(gctx, log, c.collections[i])
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, col := range c.collections {
			results[i], summaries[i], err = c.resolve(ctx, log, col)
			if err != nil {
				return nil, err
			}
		}
	}

	var h types.Holdings
	for i, col := range c.collections {
		h.Set(col.Role, holders.Aggregate(results[i].Owners))
	}
	rows, err := leaderboard.Build(results[primaryIdx].Owners, h, c.engine)
	switch {
	case errors.Is(err, leaderboard.ErrNoWeight):
		log.Warn("no primary tokens owned, leaderboard is empty")
		rows = []types.LeaderboardRow{}
	case err != nil:
		return nil, err
	}

	rep := &types.Report{
		RunID:       runID,
		Height:      height,
		BlockTime:   blockTime.UTC(),
		GeneratedAt: c.opt.Now().UTC(),
		ETag:        computeETag(height, rows),
		TotalWeight: leaderboard.TotalWeight(rows),
		Collections: summaries,
		Rows:        rows,
	}
	log.Info("leaderboard computed", zap.Int("addresses", len(rows)), zap.Float64("total_weight", rep.TotalWeight), zap.String("etag", rep.ETag))
	return rep, nil
}

func (c *Computer) resolve(ctx context.Context, log *zap.Logger, col types.Collection) (*holders.Result, types.CollectionSummary, error) {
	sum := types.CollectionSummary{Name: col.Name, Role: col.Role, Minter: col.Minter, Supply: col.Supply}
	if c.opt.Progress != nil {
		c.opt.Progress.Start(col)
	}
	start := time.Now()
	res, err := c.resolver.ResolveCollection(ctx, col)
	sum.Elapsed = time.Since(start)
	if err == nil {
		sum.Contract = res.Contract
		sum.Minted = len(res.Owners)
		sum.Holders = len(holders.Aggregate(res.Owners))
	}
	if c.opt.Progress != nil {
		c.opt.Progress.Done(col, sum, err)
	}
	if err != nil {
		log.Error("collection failed", zap.String("collection", col.Name), zap.Error(err))
		return nil, sum, err
	}
	log.Info("collection resolved",
		zap.String("collection", col.Name),
		zap.String("contract", sum.Contract),
		zap.Int("minted", sum.Minted),
		zap.Int("holders", sum.Holders),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return res, sum, nil
}

// computeETag hashes the height and the ranked rows.
func computeETag(height int64, rows []types.LeaderboardRow) string {
	h := sha1.New()
	h.Write([]byte(strconv.FormatInt(height, 10)))
	h.Write([]byte{0})
	for _, r := range rows {
		h.Write([]byte(r.Address))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(r.Weight, 'g', -1, 64)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(r.Rank)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

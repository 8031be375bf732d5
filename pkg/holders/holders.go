package holders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cosmonauts/whalewatching/pkg/address"
	"github.com/cosmonauts/whalewatching/pkg/lcd"
	"github.com/cosmonauts/whalewatching/pkg/types"
)

// Indexer is the subset of the LCD client the resolver needs.
type Indexer interface {
	MinterConfig(ctx context.Context, minter string) (string, error)
	OwnerOf(ctx context.Context, contract string, tokenID int) (string, error)
}

// ResolutionError reports a failed collection resolution. TokenID is 0 when
// the minter config lookup failed.
type ResolutionError struct {
	Collection string
	TokenID    int
	Err        error
}

func (e *ResolutionError) Error() string {
	if e.TokenID == 0 {
		return fmt.Sprintf("resolve %s: minter config: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("resolve %s: token %d: %v", e.Collection, e.TokenID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver resolves the current owner of every token of a collection.
type Resolver struct {
	idx         Indexer
	concurrency int
	prefix      string
	log         *zap.Logger
}

type Options struct {
	// Concurrency caps in-flight owner queries per collection.
	Concurrency int
	// AddressPrefix, when set, is the bech32 prefix every owner must carry.
	AddressPrefix string
}

func NewResolver(idx Indexer, opt Options, log *zap.Logger) *Resolver {
	if opt.Concurrency <= 0 {
		opt.Concurrency = 32
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{idx: idx, concurrency: opt.Concurrency, prefix: opt.AddressPrefix, log: log}
}

// Result is a resolved collection.
type Result struct {
	Contract string
	Owners   types.OwnerMap
}

// Resolve looks up the minter's sg721 contract and queries owner_of for ids
// 1..supply. Unminted tokens are omitted. Any other failure cancels the
// remaining queries and fails the whole collection.
func (r *Resolver) Resolve(ctx context.Context, minter string, supply int) (types.OwnerMap, error) {
	res, err := r.ResolveCollection(ctx, types.Collection{Name: minter, Minter: minter, Supply: supply})
	if err != nil {
		return nil, err
	}
	return res.Owners, nil
}

// ResolveCollection is Resolve with the collection name carried into errors
// and the sg721 address returned alongside the owners.
func (r *Resolver) ResolveCollection(ctx context.Context, c types.Collection) (*Result, error) {
	contract, err := r.idx.MinterConfig(ctx, c.Minter)
	if err != nil {
		return nil, &ResolutionError{Collection: c.Name, Err: err}
	}
	if r.prefix != "" {
		if err := address.Validate(contract, r.prefix); err != nil {
			return nil, &ResolutionError{Collection: c.Name, Err: fmt.Errorf("malformed sg721 address: %w", err)}
		}
	}
	r.log.Debug("resolved sg721", zap.String("collection", c.Name), zap.String("contract", contract))

	var (
		mu     sync.Mutex
		owners = make(types.OwnerMap, c.Supply)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for id := 1; id <= c.Supply; id++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			owner, err := r.idx.OwnerOf(gctx, contract, id)
			switch {
			case errors.Is(err, lcd.ErrNotMinted):
				return nil
			case err != nil:
				return &ResolutionError{Collection: c.Name, TokenID: id, Err: err}
			}
			if r.prefix != "" {
				if err := address.Validate(owner, r.prefix); err != nil {
					return &ResolutionError{Collection: c.Name, TokenID: id, Err: fmt.Errorf("malformed owner: %w", err)}
				}
			}
			mu.Lock()
			owners[id] = owner
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &ResolutionError{Collection: c.Name, Err: err}
	}
	return &Result{Contract: contract, Owners: owners}, nil
}

// Aggregate counts how many tokens each address holds.
func Aggregate(owners types.OwnerMap) types.HolderCount {
	counts := make(types.HolderCount, len(owners))
	for _, addr := range owners {
		counts[addr]++
	}
	return counts
}

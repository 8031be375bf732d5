package leaderboard

import (
	"errors"
	"math"
	"sort"

	"github.com/cosmonauts/whalewatching/pkg/boost"
	"github.com/cosmonauts/whalewatching/pkg/types"
)

// ErrNoWeight is returned when no primary token is owned, so percentages
// are undefined.
var ErrNoWeight = errors.New("leaderboard: total weight is zero")

// Weights sums one boost per primary token into a weight per owner.
func Weights(primary types.OwnerMap, h types.Holdings, e *boost.Engine) map[string]float64 {
	weights := make(map[string]float64)
	for _, owner := range primary {
		weights[owner] += e.Boost(
			h.Primary[owner],
			h.Starty[owner],
			h.HonorStarty[owner],
			h.Planet[owner],
			h.Bad[owner],
		)
	}
	return weights
}

// Build weights every primary token by its owner's boost and ranks owners.
// holdings.Primary must be the aggregate of primary.
func Build(primary types.OwnerMap, holdings types.Holdings, e *boost.Engine) ([]types.LeaderboardRow, error) {
	return Rank(Weights(primary, holdings, e))
}

// Rank orders weights descending (address ascending on ties), assigns
// competition ranks and fills in each address's share of the total.
func Rank(weights map[string]float64) ([]types.LeaderboardRow, error) {
	var total float64
	rows := make([]types.LeaderboardRow, 0, len(weights))
	for addr, w := range weights {
		total += w
		rows = append(rows, types.LeaderboardRow{Address: addr, Weight: w})
	}
	if total <= 0 {
		return nil, ErrNoWeight
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Weight != rows[j].Weight {
			return rows[i].Weight > rows[j].Weight
		}
		return rows[i].Address < rows[j].Address
	})

	rank, prev := 0, math.Inf(1)
	for i := range rows {
		if rows[i].Weight < prev {
			rank = i + 1
			prev = rows[i].Weight
		}
		rows[i].Rank = rank
		rows[i].WeightPerc = rows[i].Weight / total * 100
	}
	return rows, nil
}

// TotalWeight sums the row weights.
func TotalWeight(rows []types.LeaderboardRow) float64 {
	var t float64
	for _, r := range rows {
		t += r.Weight
	}
	return t
}

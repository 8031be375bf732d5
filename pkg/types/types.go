package types

import "time"

// Role is the part a collection plays in the weighting.
type Role string

const (
	RolePrimary     Role = "primary"
	RoleStarty      Role = "starty"
	RoleHonorStarty Role = "honor_starty"
	RolePlanet      Role = "planet"
	RoleBad         Role = "bad"
)

// SecondaryRoles lists the boost-contributing roles in formula order.
var SecondaryRoles = []Role{RoleStarty, RoleHonorStarty, RolePlanet, RoleBad}

// Collection identifies an NFT collection by its minter contract. Token ids
// run from 1 to Supply inclusive.
type Collection struct {
	Name   string `yaml:"name" json:"name"`
	Role   Role   `yaml:"role" json:"role"`
	Minter string `yaml:"minter" json:"minter"`
	Supply int    `yaml:"supply" json:"supply"`
}

// OwnerMap maps token id to owner address. Unminted tokens are absent.
type OwnerMap map[int]string

// HolderCount maps address to the number of tokens it holds in one collection.
type HolderCount map[string]int

// Total returns the number of tokens counted.
func (h HolderCount) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// Holdings carries one HolderCount per role.
type Holdings struct {
	Primary     HolderCount
	Starty      HolderCount
	HonorStarty HolderCount
	Planet      HolderCount
	Bad         HolderCount
}

// Set stores counts under role. Unknown roles are ignored.
func (h *Holdings) Set(role Role, counts HolderCount) {
	switch role {
	case RolePrimary:
		h.Primary = counts
	case RoleStarty:
		h.Starty = counts
	case RoleHonorStarty:
		h.HonorStarty = counts
	case RolePlanet:
		h.Planet = counts
	case RoleBad:
		h.Bad = counts
	}
}

// LeaderboardRow is one ranked address. Field names match the historical
// whalewatching.json output.
type LeaderboardRow struct {
	Address    string  `json:"Address"`
	Weight     float64 `json:"Weight"`
	WeightPerc float64 `json:"WeightPerc"`
	Rank       int     `json:"Rank"`
}

// CollectionSummary describes one resolved collection in a report.
type CollectionSummary struct {
	Name     string        `json:"name"`
	Role     Role          `json:"role"`
	Minter   string        `json:"minter"`
	Contract string        `json:"contract"`
	Supply   int           `json:"supply"`
	Minted   int           `json:"minted"`
	Holders  int           `json:"holders"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Report is the outcome of one raffle run at a given block height.
type Report struct {
	RunID       string              `json:"run_id"`
	Height      int64               `json:"height"`
	BlockTime   time.Time           `json:"block_time"`
	GeneratedAt time.Time           `json:"generated_at"`
	ETag        string              `json:"etag"`
	TotalWeight float64             `json:"total_weight"`
	Collections []CollectionSummary `json:"collections"`
	Rows        []LeaderboardRow    `json:"rows"`
}

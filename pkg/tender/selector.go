package tender

import "math/rand/v2"

// Selector chooses the winning bid when a tender is closed. The policy
// is pluggable so a deterministic rule can replace the default without
// touching the engine.
type Selector interface {
	Select(bids []Bid) Bid
}

// RandomSelector picks uniformly at random among all bids recorded at
// close time. No ranking by amount is applied; this is the simplest
// correct policy.
type RandomSelector struct{}

func (RandomSelector) Select(bids []Bid) Bid {
	return bids[rand.IntN(len(bids))]
}

// LowestBidSelector deterministically picks the lowest bid; earlier
// bids win ties. An auditable alternative to random selection.
type LowestBidSelector struct{}

func (LowestBidSelector) Select(bids []Bid) Bid {
	best := bids[0]
	for _, b := range bids[1:] {
		if b.Amount < best.Amount {
			best = b
		}
	}
	return best
}

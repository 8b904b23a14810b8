// Package ledger turns scores into a zero-sum stake transfer.
//
// The risk basis S is the stake locked on the belief, the same stake the
// weights are shares of. A loser with raw score r = score·weight loses
// floor(min(-r, weight)·S), never more than the stake it locked and never
// more than its balance. The losses form the slashing pool, which winners
// split in proportion to their raw score with largest-remainder rounding so
// the deltas sum to exactly zero. Without winners, or with an empty pool,
// nothing moves.
package ledger

import (
	"bytes"
	"sort"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/probability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position is one scored agent going into redistribution.
type Position struct {
	AgentID uuid.UUID
	Score   float64
	Weight  float64
	// Locked is the stake the agent committed to the belief.
	Locked int64
	// Stake is the agent's balance.
	Stake int64
}

type Delta struct {
	AgentID uuid.UUID `json:"agent_id"`
	Amount  int64     `json:"amount"`
}

type Result struct {
	// Deltas has one entry per position, in agent-id order.
	Deltas        []Delta `json:"deltas"`
	SlashingPool  int64   `json:"slashing_pool"`
	RiskBasis     int64   `json:"risk_basis"`
	Redistributed bool    `json:"redistributed"`
}

// Amounts indexes the deltas by agent.
func (r *Result) Amounts() map[uuid.UUID]int64 {
	m := make(map[uuid.UUID]int64, len(r.Deltas))
	for _, d := range r.Deltas {
		m[d.AgentID] = d.Amount
	}
	return m
}

// Redistribute computes the transfer for one epoch of one belief. riskBasis
// is the total stake locked on the belief, passive lockers included.
func Redistribute(positions []Position, riskBasis int64) (*Result, error) {
	if riskBasis < 0 {
		return nil, domain.ValidationErrorf("negative risk basis %d", riskBasis)
	}
	ps := append([]Position(nil), positions...)
	sort.Slice(ps, func(i, j int) bool {
		return bytes.Compare(ps[i].AgentID[:], ps[j].AgentID[:]) < 0
	})

	for _, p := range ps {
		if !probability.Finite(p.Score) {
			return nil, domain.NewError(domain.ErrNumericalInstability, "non-finite score %v", p.Score).WithAgent(p.AgentID)
		}
		if !probability.Finite(p.Weight) || p.Weight < 0 || p.Weight > 1 {
			return nil, domain.ValidationErrorf("weight %v outside [0,1]", p.Weight).WithAgent(p.AgentID)
		}
		if p.Stake < 0 {
			return nil, domain.ValidationErrorf("negative stake %d", p.Stake).WithAgent(p.AgentID)
		}
		if p.Locked < 0 || p.Locked > riskBasis {
			return nil, domain.ValidationErrorf("locked stake %d outside [0,%d]", p.Locked, riskBasis).WithAgent(p.AgentID)
		}
	}

	basis := decimal.NewFromInt(riskBasis)
	res := &Result{
		Deltas:    make([]Delta, len(ps)),
		RiskBasis: riskBasis,
	}
	for i, p := range ps {
		res.Deltas[i] = Delta{AgentID: p.AgentID}
	}

	losses := make([]decimal.Decimal, len(ps))
	pool := decimal.Zero
	winnerRaw := decimal.Zero
	var winners []int
	for i, p := range ps {
		raw := decimal.NewFromFloat(p.Score).Mul(decimal.NewFromFloat(p.Weight))
		switch raw.Sign() {
		case 1:
			winners = append(winners, i)
			winnerRaw = winnerRaw.Add(raw)
		case -1:
			exposure := decimal.Min(raw.Neg(), decimal.NewFromFloat(p.Weight))
			loss := decimal.Min(exposure.Mul(basis).Floor(),
				decimal.NewFromInt(p.Locked), decimal.NewFromInt(p.Stake))
			losses[i] = loss
			pool = pool.Add(loss)
		}
	}

	if len(winners) == 0 || pool.IsZero() {
		return res, nil
	}

	gains := split(pool, winners, ps, winnerRaw)
	for i := range ps {
		res.Deltas[i].Amount = gains[i].Sub(losses[i]).IntPart()
	}
	res.SlashingPool = pool.IntPart()
	res.Redistributed = true
	return res, nil
}

// split divides pool over winners proportionally to score·weight. Floors are
// handed out first; the leftover units go to the largest fractional parts,
// ties resolved by agent-id order.
func split(pool decimal.Decimal, winners []int, ps []Position, total decimal.Decimal) []decimal.Decimal {
	gains := make([]decimal.Decimal, len(ps))
	for i := range gains {
		gains[i] = decimal.Zero
	}

	type share struct {
		idx  int
		frac decimal.Decimal
	}
	shares := make([]share, 0, len(winners))
	allotted := decimal.Zero
	for _, i := range winners {
		raw := decimal.NewFromFloat(ps[i].Score).Mul(decimal.NewFromFloat(ps[i].Weight))
		exact := pool.Mul(raw).Div(total)
		whole := exact.Floor()
		gains[i] = whole
		allotted = allotted.Add(whole)
		shares = append(shares, share{idx: i, frac: exact.Sub(whole)})
	}

	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].frac.GreaterThan(shares[b].frac)
	})
	one := decimal.NewFromInt(1)
	for k, left := 0, pool.Sub(allotted).IntPart(); left > 0; k, left = k+1, left-1 {
		i := shares[k%len(shares)].idx
		gains[i] = gains[i].Add(one)
	}
	return gains
}

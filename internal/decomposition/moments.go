package decomposition

import "math"

// moments holds weighted sufficient statistics for a set of participants.
// Every field is additive, so the statistics of any subset are sums of the
// per-participant values.
type moments struct {
	n int
	w float64

	bb, bu, uu float64 // Σw b², Σw b(1-b), Σw (1-b)²
	bm, um     float64 // Σw b m, Σw (1-b) m
	lb, lnb    float64 // Σw ln b, Σw ln(1-b)
	lm, lnm    float64 // Σw ln m, Σw ln(1-m)
	sb, sm     float64 // Σw b, Σw m
}

func momentsOf(p Participant) moments {
	b, m, w := p.Belief, p.Meta, p.Weight
	u := 1 - b
	return moments{
		n:   1,
		w:   w,
		bb:  w * b * b,
		bu:  w * b * u,
		uu:  w * u * u,
		bm:  w * b * m,
		um:  w * u * m,
		lb:  w * math.Log(b),
		lnb: w * math.Log(u),
		lm:  w * math.Log(m),
		lnm: w * math.Log(1-m),
		sb:  w * b,
		sm:  w * m,
	}
}

func (a moments) add(o moments) moments {
	return moments{
		n:   a.n + o.n,
		w:   a.w + o.w,
		bb:  a.bb + o.bb,
		bu:  a.bu + o.bu,
		uu:  a.uu + o.uu,
		bm:  a.bm + o.bm,
		um:  a.um + o.um,
		lb:  a.lb + o.lb,
		lnb: a.lnb + o.lnb,
		lm:  a.lm + o.lm,
		lnm: a.lnm + o.lnm,
		sb:  a.sb + o.sb,
		sm:  a.sm + o.sm,
	}
}

// scaled divides every weighted sum by the total weight, which is the same as
// renormalising the subset's weights to sum to one.
func (a moments) scaled() moments {
	if a.w == 0 {
		return a
	}
	k := 1 / a.w
	return moments{
		n:   a.n,
		w:   1,
		bb:  a.bb * k,
		bu:  a.bu * k,
		uu:  a.uu * k,
		bm:  a.bm * k,
		um:  a.um * k,
		lb:  a.lb * k,
		lnb: a.lnb * k,
		lm:  a.lm * k,
		lnm: a.lnm * k,
		sb:  a.sb * k,
		sm:  a.sm * k,
	}
}

// exclusive returns, for every index r, the statistics of all participants
// except r. Prefix and suffix sums keep each result free of r's own values.
func exclusive(per []moments) []moments {
	n := len(per)
	prefix := make([]moments, n)
	suffix := make([]moments, n)
	for i := 1; i < n; i++ {
		prefix[i] = prefix[i-1].add(per[i-1])
	}
	for i := n - 2; i >= 0; i-- {
		suffix[i] = suffix[i+1].add(per[i+1])
	}
	out := make([]moments, n)
	for r := range per {
		out[r] = prefix[r].add(suffix[r])
	}
	return out
}

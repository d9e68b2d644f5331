package ruleconvert

// Budget caps the rules emitted by one conversion call. A zero limit is unlimited.
type Budget struct {
	limit int
	used  int
}

func NewBudget(limit int) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

// Exhausted reports whether no further rule may be emitted.
func (b *Budget) Exhausted() bool {
	return b.limit > 0 && b.used >= b.limit
}

// Take reserves one rule, returning false once the limit is reached.
func (b *Budget) Take() bool {
	if b.Exhausted() {
		return false
	}
	b.used++
	return true
}

func (b *Budget) Used() int { return b.used }

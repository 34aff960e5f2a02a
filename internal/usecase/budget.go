package usecase

// Unlimited disables a Budget cap.
const Unlimited = -1

// Budget tracks one run's provider requests, credits and filled bars
// against the configured caps. It is not safe for concurrent use; jobs
// iterate their (symbol, timeframe) units sequentially.
type Budget struct {
	maxRequests int
	maxFills    int

	Requests int
	Credits  int
	Fills    int
}

func NewBudget(maxRequests, maxFills int) *Budget {
	return &Budget{maxRequests: maxRequests, maxFills: maxFills}
}

// CanRequest reports whether another provider request fits the cap.
func (b *Budget) CanRequest() bool {
	return b.maxRequests == Unlimited || b.Requests < b.maxRequests
}

// Spend counts one request costing credits.
func (b *Budget) Spend(credits int) {
	b.Requests++
	b.Credits += credits
}

// FillsLeft is the remaining number of bars the run may insert.
func (b *Budget) FillsLeft() int {
	if b.maxFills == Unlimited {
		return int(^uint(0) >> 1)
	}
	return max(0, b.maxFills-b.Fills)
}

func (b *Budget) UseFills(n int) { b.Fills += n }

// Exhausted reports whether either cap has been reached.
func (b *Budget) Exhausted() bool {
	return !b.CanRequest() || b.FillsLeft() == 0
}

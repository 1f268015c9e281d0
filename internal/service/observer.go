package service

// Issue outcomes reported to an Observer.
const (
	OutcomeNew         = "new"
	OutcomeReused      = "reused"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
	OutcomeValid       = "valid"
)

// Observer receives engine outcomes, typically to export them as metrics.
type Observer interface {
	IssueOutcome(outcome string)
	ValidateOutcome(outcome string)
	ExpiredDeleted(n int64)
}

type nopObserver struct{}

func (nopObserver) IssueOutcome(string)    {}
func (nopObserver) ValidateOutcome(string) {}
func (nopObserver) ExpiredDeleted(int64)   {}

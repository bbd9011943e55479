package domain

// OutcomeStatus classifies how a single product fared in a reconciliation run.
type OutcomeStatus string

const (
	// OutcomeUnchanged means extraction succeeded and the price stayed the same.
	OutcomeUnchanged OutcomeStatus = "unchanged"
	// OutcomeUpdated means a new price (or a first price) was recorded in history.
	OutcomeUpdated OutcomeStatus = "updated"
	// OutcomeFailed means the product's stored state was not (fully) refreshed.
	OutcomeFailed OutcomeStatus = "failed"
)

// ProductOutcome is the per-product result of a reconciliation step.
type ProductOutcome struct {
	ProductID    string
	Status       OutcomeStatus
	PriceChanged bool // a previous price existed and differs from the new one
	AlertSent    bool
	Reason       error
}

// RunSummary aggregates the outcomes of one reconciliation run.
//
// Updated counts products whose price was recorded in history (first
// observation included). PriceChanges counts only those that had a previous
// price. The counters are not a partition of Total.
type RunSummary struct {
	Total        int `json:"total"`
	Updated      int `json:"updated"`
	Failed       int `json:"failed"`
	PriceChanges int `json:"priceChanges"`
	AlertsSent   int `json:"alertsSent"`
}

// Add folds one outcome into the summary.
func (s RunSummary) Add(o ProductOutcome) RunSummary {
	s.Total++
	switch o.Status {
	case OutcomeFailed:
		s.Failed++
	case OutcomeUpdated:
		s.Updated++
	}
	if o.PriceChanged {
		s.PriceChanges++
	}
	if o.AlertSent {
		s.AlertsSent++
	}
	return s
}

// Summarize folds a slice of outcomes into a RunSummary.
func Summarize(outcomes []ProductOutcome) RunSummary {
	var s RunSummary
	for _, o := range outcomes {
		s = s.Add(o)
	}
	return s
}

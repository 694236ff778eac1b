package facematch

import "fmt"

// Label is the qualitative verdict for a top-1 distance.
type Label int

const (
	LabelExact Label = iota
	LabelSimilar
	LabelNoMatch
)

// Messages returned to API callers, one per label.
const (
	MessageExact   = "Exact image found"
	MessageSimilar = "Similar image found"
	MessageNoMatch = "No similar image found"
)

func (l Label) String() string {
	switch l {
	case LabelExact:
		return "exact"
	case LabelSimilar:
		return "similar"
	default:
		return "no_match"
	}
}

// Message returns the user facing text for the label.
func (l Label) Message() string {
	switch l {
	case LabelExact:
		return MessageExact
	case LabelSimilar:
		return MessageSimilar
	default:
		return MessageNoMatch
	}
}

// Metric names the distance function the index ranks by.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricEuclidean, MetricCosine:
		return Metric(s), nil
	case "":
		return MetricEuclidean, nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// Thresholds separate exact, similar and unrelated matches. The values only
// make sense for the model and metric they were calibrated on.
type Thresholds struct {
	Metric  Metric
	Exact   float64 // distance below this is the same image
	Similar float64 // distance below this is plausibly the same identity
}

// Validate reports thresholds that cannot produce the three verdicts in order.
func (t Thresholds) Validate() error {
	if t.Exact < 0 || t.Similar < 0 {
		return fmt.Errorf("thresholds must be non-negative (exact=%v, similar=%v)", t.Exact, t.Similar)
	}
	if t.Exact > t.Similar {
		return fmt.Errorf("exact threshold %v is above similar threshold %v", t.Exact, t.Similar)
	}
	return nil
}

// Label classifies a distance score.
func (t Thresholds) Label(score float64) Label {
	switch {
	case score < t.Exact:
		return LabelExact
	case score < t.Similar:
		return LabelSimilar
	default:
		return LabelNoMatch
	}
}

// Score builds the MatchResult for one id/distance pair.
func (t Thresholds) Score(id string, distance float64) MatchResult {
	label := t.Label(distance)
	return MatchResult{ID: id, Score: distance, Label: label, Message: label.Message()}
}

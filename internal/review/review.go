// Package review defines the review rows consumed by the sentiment engine and the
// ternary sentiment label it produces.
package review

import "fmt"

// Review is a single restaurant review as read from the external data source.
type Review struct {
	ID         string `json:"review_id"`
	BusinessID string `json:"business_id"`
	Text       string `json:"text"`
	Stars      int    `json:"stars"`
}

// Label is the sentiment class of a review.
type Label int8

const (
	Negative Label = -1
	Neutral  Label = 0
	Positive Label = 1
)

// LabelFromStars derives the training label from a star rating.
func LabelFromStars(stars int) Label {
	switch {
	case stars >= 4:
		return Positive
	case stars <= 2:
		return Negative
	default:
		return Neutral
	}
}

// ParseLabel converts a raw integer into a Label, rejecting values outside {-1, 0, 1}.
func ParseLabel(v int) (Label, error) {
	l := Label(v)
	if int(l) != v || !l.Valid() {
		return 0, fmt.Errorf("label %d outside {-1, 0, 1}", v)
	}
	return l, nil
}

// Valid reports whether l is one of the three sentiment classes.
func (l Label) Valid() bool {
	return l == Negative || l == Neutral || l == Positive
}

func (l Label) String() string {
	switch l {
	case Positive:
		return "Positive"
	case Negative:
		return "Negative"
	case Neutral:
		return "Neutral"
	default:
		return fmt.Sprintf("Label(%d)", int8(l))
	}
}

// Names renders each label with String, preserving order.
func Names(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.String()
	}
	return names
}

// Package textclean normalizes raw review text before feature extraction.
//
// Normalization is a fixed, ordered list of stages identified by StageID. A single
// runner (Pipeline) executes the list; stages hold no state of their own, the stop-word
// set and stemmer they need are owned by the Pipeline and built once.
//
// Order matters: contractions are expanded before non-word characters are stripped,
// because stripping removes the apostrophes the expansion keys on.
package textclean

import (
	"fmt"
	"strings"
)

// StageID identifies one normalization step.
type StageID int

const (
	StripMarkup StageID = iota + 1
	DropNonASCII
	StripDigits
	StripURLs
	StripControl
	ExpandContractions
	StripNonWord
	DropShortTokens
	CollapseSpaces
	Lowercase
	RemoveStopWords
	Stem
)

var stageNames = map[StageID]string{
	StripMarkup:        "strip_markup",
	DropNonASCII:       "drop_non_ascii",
	StripDigits:        "strip_digits",
	StripURLs:          "strip_urls",
	StripControl:       "strip_control",
	ExpandContractions: "expand_contractions",
	StripNonWord:       "strip_non_word",
	DropShortTokens:    "drop_short_tokens",
	CollapseSpaces:     "collapse_spaces",
	Lowercase:          "lowercase",
	RemoveStopWords:    "remove_stop_words",
	Stem:               "stem",
}

// DefaultStages is the serving-time normalization order. The vocabulary artifact was
// built from text normalized in exactly this order.
var DefaultStages = []StageID{
	StripMarkup,
	DropNonASCII,
	StripDigits,
	StripURLs,
	StripControl,
	ExpandContractions,
	StripNonWord,
	DropShortTokens,
	CollapseSpaces,
	Lowercase,
	RemoveStopWords,
	Stem,
}

func (id StageID) String() string {
	if name, ok := stageNames[id]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(id))
}

// ParseStageID resolves a stage by its String name.
func ParseStageID(name string) (StageID, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	for id, n := range stageNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// ParseStages resolves a list of stage names, preserving order.
func ParseStages(names []string) ([]StageID, error) {
	ids := make([]StageID, 0, len(names))
	for _, n := range names {
		id, err := ParseStageID(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package textclean

import (
	"fmt"
	"strings"

	porterstemmer "github.com/reiver/go-porterstemmer"
	"github.com/rs/zerolog/log"
)

// StageObserver is notified when a stage fails for a single text.
type StageObserver interface {
	StageFailureInc(stage string)
}

// Pipeline runs an ordered list of stages over review text. It is immutable after New
// and safe for concurrent use.
type Pipeline struct {
	stages   []StageID
	stops    map[string]struct{}
	stemmer  func(string) string
	observer StageObserver
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStages replaces the default stage order.
func WithStages(ids ...StageID) Option {
	return func(p *Pipeline) {
		p.stages = append([]StageID(nil), ids...)
	}
}

// WithStopWords replaces the default English stop-word list.
func WithStopWords(words []string) Option {
	return func(p *Pipeline) {
		p.stops = newStopSet(words)
	}
}

// WithObserver reports stage failures to o.
func WithObserver(o StageObserver) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// New builds a Pipeline running DefaultStages unless overridden.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:  append([]StageID(nil), DefaultStages...),
		stops:   defaultStopSet,
		stemmer: porterstemmer.StemString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the stage order this pipeline runs.
func (p *Pipeline) Stages() []StageID {
	return append([]StageID(nil), p.stages...)
}

// Apply normalizes one text. A stage that fails is skipped for this text only and the
// output of the previous stage flows into the next one.
func (p *Pipeline) Apply(text string) string {
	for _, id := range p.stages {
		out, err := p.run(id, text)
		if err != nil {
			log.Warn().
				Err(err).
				Str("stage", id.String()).
				Int("text_len", len(text)).
				Msg("text stage failed, skipping for this review")
			if p.observer != nil {
				p.observer.StageFailureInc(id.String())
			}
			continue
		}
		text = out
	}
	return text
}

// Transform normalizes every text, preserving order.
func (p *Pipeline) Transform(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = p.Apply(t)
	}
	return out
}

// ApplyStage runs a single stage with this pipeline's stop words and stemmer.
func (p *Pipeline) ApplyStage(id StageID, text string) (string, error) {
	return p.run(id, text)
}

func (p *Pipeline) run(id StageID, text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", id, r)
		}
	}()

	switch id {
	case StripMarkup:
		return stripMarkup(text)
	case DropNonASCII:
		return dropNonASCII(text), nil
	case StripDigits:
		return stripDigits(text), nil
	case StripURLs:
		return stripURLs(text), nil
	case StripControl:
		return stripControl(text), nil
	case ExpandContractions:
		return expandContractions(text), nil
	case StripNonWord:
		return stripNonWord(text), nil
	case DropShortTokens:
		return dropShortTokens(text), nil
	case CollapseSpaces:
		return collapseSpaces(text), nil
	case Lowercase:
		return strings.ToLower(text), nil
	case RemoveStopWords:
		return removeStopWords(text, p.stops), nil
	case Stem:
		return stem(text, p.stemmer), nil
	default:
		return "", fmt.Errorf("unknown stage %s", id)
	}
}

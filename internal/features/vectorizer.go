// Package features turns normalized review text into fixed-width numeric vectors using a
// vocabulary learned at training time and loaded read-only at serving time.
package features

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"restaurant-sentiment/internal/artifact"
)

// Vector is one feature row. Its length equals the vocabulary size of the Vectorizer
// that produced it.
type Vector []float64

// tokenRe matches the count-vectorizer default token: two or more word characters.
var tokenRe = regexp.MustCompile(`\b\w\w+\b`)

// VocabularyArtifact is the payload of a vocabulary artifact.
type VocabularyArtifact struct {
	Vocabulary map[string]int `json:"vocabulary"`
	NgramRange [2]int         `json:"ngram_range,omitempty"`
	Binary     bool           `json:"binary,omitempty"`
	IDF        []float64      `json:"idf,omitempty"`
	Norm       string         `json:"norm,omitempty"`
}

// Vectorizer maps cleaned text onto vocabulary columns. It never mutates its vocabulary
// and is safe for concurrent use.
type Vectorizer struct {
	vocab  map[string]int
	minN   int
	maxN   int
	binary bool
	idf    []float64
	norm   string
	header artifact.Header
}

// NewVectorizer validates a vocabulary payload and builds a Vectorizer from a private
// copy of it.
func NewVectorizer(a VocabularyArtifact) (*Vectorizer, error) {
	size := len(a.Vocabulary)
	if size == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", artifact.ErrCorrupt)
	}

	vocab := make(map[string]int, size)
	seen := make([]bool, size)
	for token, idx := range a.Vocabulary {
		if idx < 0 || idx >= size {
			return nil, fmt.Errorf("%w: token %q has index %d outside [0,%d)", artifact.ErrCorrupt, token, idx, size)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: index %d assigned twice", artifact.ErrCorrupt, idx)
		}
		seen[idx] = true
		vocab[token] = idx
	}

	minN, maxN := a.NgramRange[0], a.NgramRange[1]
	if minN == 0 && maxN == 0 {
		minN, maxN = 1, 1
	}
	if minN < 1 || maxN < minN {
		return nil, fmt.Errorf("%w: invalid ngram range [%d,%d]", artifact.ErrCorrupt, minN, maxN)
	}

	var idf []float64
	if a.IDF != nil {
		if len(a.IDF) != size {
			return nil, fmt.Errorf("%w: %d idf weights for %d tokens", artifact.ErrCorrupt, len(a.IDF), size)
		}
		idf = append([]float64(nil), a.IDF...)
	}

	switch a.Norm {
	case "", "l1", "l2":
	default:
		return nil, fmt.Errorf("%w: unknown norm %q", artifact.ErrCorrupt, a.Norm)
	}

	return &Vectorizer{
		vocab:  vocab,
		minN:   minN,
		maxN:   maxN,
		binary: a.Binary,
		idf:    idf,
		norm:   a.Norm,
	}, nil
}

// LoadVectorizer reads a vocabulary artifact from path.
func LoadVectorizer(path string) (*Vectorizer, error) {
	var a VocabularyArtifact
	hdr, err := artifact.Load(path, artifact.KindVocabulary, &a)
	if err != nil {
		return nil, err
	}

	v, err := NewVectorizer(a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	v.header = hdr
	return v, nil
}

// Size is the width of every Vector this Vectorizer produces.
func (v *Vectorizer) Size() int {
	return len(v.vocab)
}

// Index returns the column of token.
func (v *Vectorizer) Index(token string) (int, bool) {
	idx, ok := v.vocab[token]
	return idx, ok
}

// Header returns the envelope of the artifact this Vectorizer was loaded from.
func (v *Vectorizer) Header() artifact.Header {
	return v.header
}

// TransformOne vectorizes a single text. Tokens missing from the vocabulary are ignored.
func (v *Vectorizer) TransformOne(text string) Vector {
	vec := make(Vector, len(v.vocab))
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)

	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := tokens[i]
			if n > 1 {
				term = strings.Join(tokens[i:i+n], " ")
			}
			idx, ok := v.vocab[term]
			if !ok {
				continue
			}
			if v.binary {
				vec[idx] = 1
			} else {
				vec[idx]++
			}
		}
	}

	if v.idf != nil {
		for i := range vec {
			vec[i] *= v.idf[i]
		}
	}
	normalize(vec, v.norm)

	return vec
}

// Transform vectorizes every text, preserving order.
func (v *Vectorizer) Transform(texts []string) []Vector {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = v.TransformOne(t)
	}
	return out
}

func normalize(vec Vector, norm string) {
	var total float64
	switch norm {
	case "l1":
		for _, x := range vec {
			total += math.Abs(x)
		}
	case "l2":
		for _, x := range vec {
			total += x * x
		}
		total = math.Sqrt(total)
	default:
		return
	}

	if total == 0 {
		return
	}
	for i := range vec {
		vec[i] /= total
	}
}

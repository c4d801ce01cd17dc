package textclean

import (
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// maxMarkupToken bounds the bytes buffered for a single markup token. Reviews over the
// bound fail the markup stage and keep their raw text for the remaining stages.
const maxMarkupToken = 64 << 10

var (
	digitsRe      = regexp.MustCompile(`[0-9]+`)
	urlRe         = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.\-]*://\S*`)
	nonWordRe     = regexp.MustCompile(`[^\w]`)
	shortTokenRe  = regexp.MustCompile(`\b\w{1,2}\b`)
	spacesRe      = regexp.MustCompile(` +`)
	contractionRe = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)+`)

	controlReplacer = strings.NewReplacer("\n", "", "\t", "", "\b", "")
)

// stripMarkup keeps the text nodes of an HTML fragment, joined by single spaces so words
// on either side of a tag never run together.
func stripMarkup(text string) (string, error) {
	if !strings.ContainsAny(text, "<&") {
		return text, nil
	}

	z := html.NewTokenizer(strings.NewReader(text))
	z.SetMaxBuf(maxMarkupToken)

	var parts []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			err := z.Err()
			if errors.Is(err, io.EOF) {
				return strings.Join(parts, " "), nil
			}
			return "", err
		case html.TextToken:
			parts = append(parts, string(z.Text()))
		}
	}
}

func dropNonASCII(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r < utf8.RuneSelf && size == 1 {
			b.WriteByte(text[i])
		}
		i += size
	}
	return b.String()
}

func stripDigits(text string) string {
	return digitsRe.ReplaceAllString(text, "")
}

func stripURLs(text string) string {
	return urlRe.ReplaceAllString(text, "")
}

func stripControl(text string) string {
	return controlReplacer.Replace(text)
}

func expandContractions(text string) string {
	if !strings.Contains(text, "'") {
		return text
	}
	return contractionRe.ReplaceAllStringFunc(text, func(word string) string {
		expanded, ok := contractions[strings.ToLower(word)]
		if !ok {
			return word
		}
		return matchCase(word, expanded)
	})
}

// matchCase carries the capitalization of the original contraction over to its expansion.
func matchCase(original, expanded string) string {
	letters := strings.ReplaceAll(original, "'", "")
	if len(letters) > 1 && strings.ToUpper(letters) == letters {
		return strings.ToUpper(expanded)
	}
	first, _ := utf8.DecodeRuneInString(original)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(expanded)
		return string(unicode.ToUpper(r)) + expanded[size:]
	}
	return expanded
}

func stripNonWord(text string) string {
	text = nonWordRe.ReplaceAllString(text, " ")
	return strings.ReplaceAll(text, "_", "")
}

func dropShortTokens(text string) string {
	return shortTokenRe.ReplaceAllString(text, "")
}

func collapseSpaces(text string) string {
	return spacesRe.ReplaceAllString(text, " ")
}

func removeStopWords(text string, stops map[string]struct{}) string {
	tokens := strings.Fields(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := stops[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// wordTokens splits text into words at any rune that is neither a letter nor a digit.
func wordTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func stem(text string, stemmer func(string) string) string {
	tokens := wordTokens(text)
	for i, tok := range tokens {
		tokens[i] = stemmer(tok)
	}
	return strings.Join(tokens, " ")
}

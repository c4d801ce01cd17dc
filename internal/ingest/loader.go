// Package ingest reads restaurant reviews from CSV exports, Yelp-style JSON lines and the
// bbolt review store.
package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"restaurant-sentiment/internal/review"
	"restaurant-sentiment/internal/storage"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const maxLineSize = 1 << 20

// BusinessReviews is the review set of one business.
type BusinessReviews struct {
	BusinessID string
	Reviews    []review.Review
}

// Loader accumulates reviews across one or more sources.
type Loader struct {
	reviews []review.Review
	skipped int
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{
		reviews: make([]review.Review, 0),
	}
}

// Reviews returns everything loaded so far, in source order.
func (l *Loader) Reviews() []review.Review {
	return l.reviews
}

// Count returns the number of loaded reviews.
func (l *Loader) Count() int {
	return len(l.reviews)
}

// Skipped returns the number of malformed rows dropped while loading.
func (l *Loader) Skipped() int {
	return l.skipped
}

// LoadFromBoltDB loads up to limit reviews for each business; no businesses means all of them.
func (l *Loader) LoadFromBoltDB(store *storage.Store, businesses []string, limit int) error {
	if len(businesses) == 0 {
		all, err := store.Businesses()
		if err != nil {
			return fmt.Errorf("failed to list businesses: %w", err)
		}
		businesses = all
	}

	log.Info().
		Int("businesses", len(businesses)).
		Int("limit", limit).
		Msg("Loading reviews from BoltDB")

	for _, id := range businesses {
		reviews, err := store.GetReviews(id, limit)
		if err != nil {
			return fmt.Errorf("failed to load reviews for %s: %w", id, err)
		}
		l.reviews = append(l.reviews, reviews...)
	}

	log.Info().Int("total_reviews", len(l.reviews)).Msg("Reviews loaded successfully")
	return nil
}

// LoadFromCSV loads a CSV file (optionally gzip-compressed, by .gz suffix).
func (l *Loader) LoadFromCSV(filePath string) error {
	r, closeFn, err := open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer closeFn()

	before, skippedBefore := len(l.reviews), l.skipped
	if err := l.ReadCSV(r); err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	log.Info().
		Str("file", filePath).
		Int("reviews", len(l.reviews)-before).
		Int("skipped", l.skipped-skippedBefore).
		Msg("CSV reviews loaded successfully")
	return nil
}

// ReadCSV reads a header row naming review_id, business_id and text (stars optional),
// columns in any order, followed by one review per row.
func (l *Loader) ReadCSV(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"review_id", "business_id", "text"} {
		if _, ok := indices[required]; !ok {
			return fmt.Errorf("CSV header missing %q column", required)
		}
	}

	field := func(record []string, name string) (string, bool) {
		idx, ok := indices[name]
		if !ok || idx >= len(record) {
			return "", false
		}
		return record[idx], true
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			l.skip("csv", parseErr.Line, parseErr)
			continue
		}
		if err != nil {
			return err
		}

		id, ok1 := field(record, "review_id")
		business, ok2 := field(record, "business_id")
		text, ok3 := field(record, "text")
		if !ok1 || !ok2 || !ok3 || id == "" || business == "" {
			line, _ := reader.FieldPos(0)
			l.skip("csv", line, errors.New("missing review_id, business_id or text"))
			continue
		}

		stars := 0
		if raw, ok := field(record, "stars"); ok && strings.TrimSpace(raw) != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				line, _ := reader.FieldPos(0)
				l.skip("csv", line, err)
				continue
			}
			if stars, err = parseStars(f); err != nil {
				line, _ := reader.FieldPos(0)
				l.skip("csv", line, err)
				continue
			}
		}

		l.reviews = append(l.reviews, review.Review{
			ID:         id,
			BusinessID: business,
			Text:       text,
			Stars:      stars,
		})
	}
}

type jsonReview struct {
	ReviewID   string   `json:"review_id"`
	BusinessID string   `json:"business_id"`
	Text       string   `json:"text"`
	Stars      *float64 `json:"stars"`
}

// LoadFromJSONL loads a JSON-lines file (optionally gzip-compressed, by .gz suffix).
func (l *Loader) LoadFromJSONL(filePath string) error {
	r, closeFn, err := open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer closeFn()

	before, skippedBefore := len(l.reviews), l.skipped
	if err := l.ReadJSONL(r); err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	log.Info().
		Str("file", filePath).
		Int("reviews", len(l.reviews)-before).
		Int("skipped", l.skipped-skippedBefore).
		Msg("JSON reviews loaded successfully")
	return nil
}

// ReadJSONL reads one review object per line, the shape of the Yelp review dataset.
// Blank lines are ignored.
func (l *Loader) ReadJSONL(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec jsonReview
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			l.skip("jsonl", line, err)
			continue
		}
		if rec.ReviewID == "" || rec.BusinessID == "" {
			l.skip("jsonl", line, errors.New("missing review_id or business_id"))
			continue
		}

		stars := 0
		if rec.Stars != nil {
			var err error
			if stars, err = parseStars(*rec.Stars); err != nil {
				l.skip("jsonl", line, err)
				continue
			}
		}

		l.reviews = append(l.reviews, review.Review{
			ID:         rec.ReviewID,
			BusinessID: rec.BusinessID,
			Text:       rec.Text,
			Stars:      stars,
		})
	}

	return scanner.Err()
}

func (l *Loader) skip(format string, line int, err error) {
	l.skipped++
	log.Debug().Err(err).Str("format", format).Int("line", line).Msg("Skipping malformed review row")
}

func parseStars(f float64) (int, error) {
	if math.IsNaN(f) || f < 0 || f > 5 {
		return 0, fmt.Errorf("stars %v outside [0,5]", f)
	}
	return int(math.Round(f)), nil
}

func open(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, func() { f.Close() }, nil
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return zr, func() {
		zr.Close()
		f.Close()
	}, nil
}

// GroupByBusiness splits reviews by business, keeping businesses in first-seen order and
// reviews in input order.
func GroupByBusiness(reviews []review.Review) []BusinessReviews {
	var groups []BusinessReviews
	index := make(map[string]int)

	for _, r := range reviews {
		i, ok := index[r.BusinessID]
		if !ok {
			i = len(groups)
			index[r.BusinessID] = i
			groups = append(groups, BusinessReviews{BusinessID: r.BusinessID})
		}
		groups[i].Reviews = append(groups[i].Reviews, r)
	}
	return groups
}

// Texts extracts review bodies, preserving order.
func Texts(reviews []review.Review) []string {
	texts := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = r.Text
	}
	return texts
}

// Labels derives star labels for offline evaluation. Reviews without a rating (stars 0)
// are reported through the second return value as false.
func Labels(reviews []review.Review) ([]review.Label, []bool) {
	labels := make([]review.Label, len(reviews))
	rated := make([]bool, len(reviews))
	for i, r := range reviews {
		if r.Stars > 0 {
			labels[i] = review.LabelFromStars(r.Stars)
			rated[i] = true
		}
	}
	return labels, rated
}

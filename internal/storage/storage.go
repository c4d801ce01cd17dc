// Package storage provides persistent review and prediction storage for the sentiment
// service. It uses BoltDB with one sub-bucket per business, so reviews and prediction
// history of a business are read with a single cursor scan.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"restaurant-sentiment/internal/common"
	"restaurant-sentiment/internal/review"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrInvalidRecord    = errors.New("invalid record")
)

// PredictionRecord is one scored batch of a business's reviews.
type PredictionRecord struct {
	ID         string         `json:"id"`
	BusinessID string         `json:"business_id"`
	ReviewIDs  []string       `json:"review_ids"`
	Labels     []review.Label `json:"labels"`
	Acceptance float64        `json:"acceptance"` // rate in [-1, 1]
	CreatedAt  time.Time      `json:"created_at"`
}

// Store provides persistent storage for reviews and predictions using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) reviews.db in dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, common.ReviewsDBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(common.BucketReviews)); err != nil {
			return fmt.Errorf("create reviews bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(common.BucketPredictions)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreReview stores r under its business, replacing any review with the same ID.
func (s *Store) StoreReview(r review.Review) error {
	return s.StoreReviews([]review.Review{r})
}

// StoreReviews stores all reviews in a single transaction.
func (s *Store) StoreReviews(reviews []review.Review) error {
	for i, r := range reviews {
		if r.ID == "" || r.BusinessID == "" {
			return fmt.Errorf("%w: review %d needs review_id and business_id", ErrInvalidRecord, i)
		}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(common.BucketReviews))
		for _, r := range reviews {
			b, err := root.CreateBucketIfNotExists([]byte(r.BusinessID))
			if err != nil {
				return fmt.Errorf("create business bucket %s: %w", r.BusinessID, err)
			}

			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal review: %w", err)
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetReviews returns up to limit reviews of business ordered by review ID; limit <= 0
// returns all of them.
func (s *Store) GetReviews(businessID string, limit int) ([]review.Review, error) {
	var reviews []review.Review

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(common.BucketReviews)).Bucket([]byte(businessID))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrBusinessNotFound, businessID)
		}

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(reviews) >= limit {
				break
			}
			var r review.Review
			if err := json.Unmarshal(v, &r); err != nil {
				continue // Skip malformed records
			}
			reviews = append(reviews, r)
		}
		return nil
	})

	return reviews, err
}

// Businesses lists every business with at least one stored review, sorted.
func (s *Store) Businesses() ([]string, error) {
	var ids []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(common.BucketReviews)).ForEach(func(k, v []byte) error {
			if v == nil { // nested bucket
				ids = append(ids, string(k))
			}
			return nil
		})
	})

	sort.Strings(ids)
	return ids, err
}

// StorePrediction appends rec to the business's prediction history, filling in ID and
// CreatedAt when unset, and returns the stored record.
func (s *Store) StorePrediction(rec PredictionRecord) (PredictionRecord, error) {
	if rec.BusinessID == "" {
		return rec, fmt.Errorf("%w: prediction needs business_id", ErrInvalidRecord)
	}
	if len(rec.ReviewIDs) != 0 && len(rec.ReviewIDs) != len(rec.Labels) {
		return rec, fmt.Errorf("%w: %d review ids for %d labels", ErrInvalidRecord, len(rec.ReviewIDs), len(rec.Labels))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket([]byte(common.BucketPredictions)).CreateBucketIfNotExists([]byte(rec.BusinessID))
		if err != nil {
			return fmt.Errorf("create prediction bucket %s: %w", rec.BusinessID, err)
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		// zero-padded so keys sort chronologically
		key := fmt.Sprintf("%020d_%s", rec.CreatedAt.UnixNano(), rec.ID)
		return b.Put([]byte(key), data)
	})

	return rec, err
}

// GetPredictions returns the prediction history of business, oldest first.
func (s *Store) GetPredictions(businessID string) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(common.BucketPredictions)).Bucket([]byte(businessID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // Skip malformed records
			}
			records = append(records, rec)
			return nil
		})
	})

	return records, err
}

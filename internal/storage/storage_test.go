package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"restaurant-sentiment/internal/review"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, "reviews.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "missing", "nested")

	_, err := New(invalidPath)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestStoreReviews(t *testing.T) {
	store := newTestStore(t)

	reviews := []review.Review{
		{ID: "r2", BusinessID: "cafe", Text: "Lovely brunch", Stars: 5},
		{ID: "r1", BusinessID: "cafe", Text: "Cold coffee", Stars: 2},
		{ID: "r3", BusinessID: "cafe", Text: "Fine", Stars: 3},
		{ID: "r9", BusinessID: "cafe_annex", Text: "Noisy", Stars: 2},
	}
	if err := store.StoreReviews(reviews); err != nil {
		t.Fatalf("Failed to store reviews: %v", err)
	}

	got, err := store.GetReviews("cafe", 0)
	if err != nil {
		t.Fatalf("Failed to get reviews: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 reviews for cafe, got %d", len(got))
	}
	if got[0].ID != "r1" || got[2].ID != "r3" {
		t.Errorf("Expected reviews ordered by ID, got %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].Text != "Cold coffee" || got[0].Stars != 2 {
		t.Errorf("Review fields not round-tripped: %+v", got[0])
	}

	limited, err := store.GetReviews("cafe", 2)
	if err != nil {
		t.Fatalf("Failed to get limited reviews: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 reviews with limit, got %d", len(limited))
	}
}

func TestStoreReview_Replace(t *testing.T) {
	store := newTestStore(t)

	if err := store.StoreReview(review.Review{ID: "r1", BusinessID: "diner", Text: "old"}); err != nil {
		t.Fatalf("Failed to store review: %v", err)
	}
	if err := store.StoreReview(review.Review{ID: "r1", BusinessID: "diner", Text: "new"}); err != nil {
		t.Fatalf("Failed to store review: %v", err)
	}

	got, err := store.GetReviews("diner", 10)
	if err != nil {
		t.Fatalf("Failed to get reviews: %v", err)
	}
	if len(got) != 1 || got[0].Text != "new" {
		t.Errorf("Expected one replaced review, got %+v", got)
	}
}

func TestStoreReview_Invalid(t *testing.T) {
	store := newTestStore(t)

	err := store.StoreReviews([]review.Review{{ID: "r1", BusinessID: "diner"}, {ID: "r2"}})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord, got %v", err)
	}

	// nothing from the rejected batch is written
	if _, err := store.GetReviews("diner", 0); !errors.Is(err, ErrBusinessNotFound) {
		t.Errorf("Expected rejected batch to leave no business, got %v", err)
	}
}

func TestGetReviews_UnknownBusiness(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetReviews("nowhere", 10)
	if !errors.Is(err, ErrBusinessNotFound) {
		t.Errorf("Expected ErrBusinessNotFound, got %v", err)
	}
}

func TestBusinesses(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.Businesses()
	if err != nil {
		t.Fatalf("Failed to list businesses: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no businesses, got %v", ids)
	}

	for _, r := range []review.Review{
		{ID: "a", BusinessID: "zest"},
		{ID: "b", BusinessID: "bistro"},
		{ID: "c", BusinessID: "zest"},
	} {
		if err := store.StoreReview(r); err != nil {
			t.Fatalf("Failed to store review: %v", err)
		}
	}

	ids, err = store.Businesses()
	if err != nil {
		t.Fatalf("Failed to list businesses: %v", err)
	}
	if len(ids) != 2 || ids[0] != "bistro" || ids[1] != "zest" {
		t.Errorf("Expected [bistro zest], got %v", ids)
	}
}

func TestStorePrediction(t *testing.T) {
	store := newTestStore(t)

	first, err := store.StorePrediction(PredictionRecord{
		BusinessID: "bistro",
		ReviewIDs:  []string{"a", "b"},
		Labels:     []review.Label{review.Positive, review.Negative},
		Acceptance: 0,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to store prediction: %v", err)
	}
	if first.ID == "" {
		t.Error("Expected generated prediction ID")
	}

	second, err := store.StorePrediction(PredictionRecord{
		BusinessID: "bistro",
		Labels:     []review.Label{review.Positive},
		Acceptance: 1,
	})
	if err != nil {
		t.Fatalf("Failed to store prediction: %v", err)
	}
	if second.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be filled in")
	}

	history, err := store.GetPredictions("bistro")
	if err != nil {
		t.Fatalf("Failed to get predictions: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 predictions, got %d", len(history))
	}
	if history[0].ID != first.ID || history[1].ID != second.ID {
		t.Error("Expected predictions oldest first")
	}
	if history[0].Labels[1] != review.Negative {
		t.Errorf("Labels not round-tripped: %v", history[0].Labels)
	}

	none, err := store.GetPredictions("unknown")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no predictions, got %d", len(none))
	}
}

func TestStorePrediction_Invalid(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.StorePrediction(PredictionRecord{}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for missing business, got %v", err)
	}

	_, err := store.StorePrediction(PredictionRecord{
		BusinessID: "bistro",
		ReviewIDs:  []string{"a"},
		Labels:     []review.Label{review.Positive, review.Neutral},
	})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for length mismatch, got %v", err)
	}
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.StoreReview(review.Review{ID: "r1", BusinessID: "deli", Text: "good"}); err != nil {
		t.Fatalf("Failed to store review: %v", err)
	}
	store.Close()

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetReviews("deli", 0)
	if err != nil || len(got) != 1 {
		t.Errorf("Expected persisted review, got %v (err %v)", got, err)
	}
}

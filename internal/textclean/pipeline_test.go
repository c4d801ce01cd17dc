package textclean

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockObserver struct {
	mu       sync.Mutex
	failures map[string]int
}

func (m *mockObserver) StageFailureInc(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[stage]++
}

func TestApplyStage(t *testing.T) {
	p := New()

	tests := []struct {
		name  string
		stage StageID
		in    string
		want  string
	}{
		{"markup boundary becomes space", StripMarkup, "<b>good</b>food", "good food"},
		{"markup entities decoded", StripMarkup, "fish &amp; chips", "fish & chips"},
		{"markup comment dropped", StripMarkup, "tasty<!-- hidden -->meal", "tasty meal"},
		{"plain text untouched", StripMarkup, "no tags here", "no tags here"},
		{"non ascii dropped", DropNonASCII, "café 😀 ok", "caf  ok"},
		{"digits stripped", StripDigits, "5 stars 10/10", " stars /"},
		{"urls stripped", StripURLs, "see https://example.com/menu now", "see  now"},
		{"control stripped", StripControl, "a\nb\tc\bd", "abcd"},
		{"contraction expanded", ExpandContractions, "I can't go", "I cannot go"},
		{"contraction capitalized", ExpandContractions, "Don't stop", "Do not stop"},
		{"contraction upper", ExpandContractions, "DON'T", "DO NOT"},
		{"possessive untouched", ExpandContractions, "john's pizza", "john's pizza"},
		{"non word replaced", StripNonWord, "great!!! food_truck", "great    foodtruck"},
		{"short tokens dropped", DropShortTokens, "it is a big meal", "   big meal"},
		{"spaces collapsed", CollapseSpaces, "a   b  c", "a b c"},
		{"lowercased", Lowercase, "GoOd", "good"},
		{"stop words removed", RemoveStopWords, "the food was not great", "food great"},
		{"stemmed", Stem, "foods running", "food run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ApplyStage(tt.stage, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyStage_EmptyInput(t *testing.T) {
	p := New()
	for _, id := range DefaultStages {
		got, err := p.ApplyStage(id, "")
		require.NoError(t, err, id.String())
		assert.Empty(t, got, id.String())
	}
	assert.Empty(t, p.Apply(""))
}

func TestApplyStage_Unknown(t *testing.T) {
	_, err := New().ApplyStage(StageID(99), "text")
	assert.Error(t, err)
}

func TestCollapseSpaces_Idempotent(t *testing.T) {
	inputs := []string{"", " ", "a  b", "   lots    of   space   ", "single"}
	for _, in := range inputs {
		once := collapseSpaces(in)
		assert.Equal(t, once, collapseSpaces(once), "input %q", in)
	}
}

func TestPipeline_Apply(t *testing.T) {
	p := New()

	got := p.Apply("<p>The food wasn't good at all!</p><br>Visit http://x.com 5 stars")
	assert.Equal(t, "food good visit star", got)
}

func TestPipeline_OnlyStopWordsReducesToEmpty(t *testing.T) {
	p := New()
	assert.Empty(t, p.Apply("It is what it is, and we are here."))
}

func TestPipeline_Transform_PreservesOrder(t *testing.T) {
	p := New()
	out := p.Transform([]string{"Tasty foods", "", "Rude waiters"})
	require.Len(t, out, 3)
	assert.Equal(t, "tasti food", out[0])
	assert.Empty(t, out[1])
	assert.Equal(t, "rude waiter", out[2])
}

func TestPipeline_MarkupFailureDegrades(t *testing.T) {
	obs := &mockObserver{}
	p := New(WithObserver(obs))

	poisoned := "<b>" + strings.Repeat("tasty ", maxMarkupToken/5)
	got := p.Apply(poisoned)

	assert.Equal(t, 1, obs.failures[StripMarkup.String()])
	assert.NotContains(t, got, "<")
	assert.True(t, strings.HasPrefix(got, "tasti"), "got prefix %q", got[:min(len(got), 20)])
}

func TestPipeline_PanickingStageIsSkipped(t *testing.T) {
	obs := &mockObserver{}
	p := New(WithObserver(obs))
	p.stemmer = func(string) string { panic("boom") }

	assert.Equal(t, "good food", p.Apply("Good food"))
	assert.Equal(t, 1, obs.failures[Stem.String()])
}

func TestPipeline_Options(t *testing.T) {
	p := New(WithStages(Lowercase, RemoveStopWords), WithStopWords([]string{"bland"}))
	assert.Equal(t, []StageID{Lowercase, RemoveStopWords}, p.Stages())
	assert.Equal(t, "the soup", p.Apply("The BLAND soup"))
}

func TestParseStages(t *testing.T) {
	ids, err := ParseStages([]string{"strip_markup", " Lowercase ", "stem"})
	require.NoError(t, err)
	assert.Equal(t, []StageID{StripMarkup, Lowercase, Stem}, ids)

	_, err = ParseStages([]string{"translate"})
	assert.Error(t, err)

	for _, id := range DefaultStages {
		parsed, err := ParseStageID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestStopWords_ReturnsCopy(t *testing.T) {
	words := StopWords()
	words[0] = "mutated"
	assert.Equal(t, "i", StopWords()[0])
}

package evalharness_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/evalharness"
)

func TestWordErrorRateExactMatchIsZero(t *testing.T) {
	wer, ref, hyp, edits := evalharness.WordErrorRate("the quick brown fox", "the quick brown fox")
	assert.Equal(t, 0.0, wer)
	assert.Equal(t, 4, ref)
	assert.Equal(t, 4, hyp)
	assert.Equal(t, 0, edits)
}

func TestWordErrorRateCountsSubstitutionsInsertionsDeletions(t *testing.T) {
	wer, ref, _, edits := evalharness.WordErrorRate("the quick brown fox", "the slow brown fox jumped")
	assert.Equal(t, 4, ref)
	assert.Equal(t, 2, edits) // "quick"->"slow" substitution, "jumped" insertion
	assert.InDelta(t, 0.5, wer, 1e-9)
}

func TestWordErrorRateEmptyReferenceWithHypothesisIsOne(t *testing.T) {
	wer, ref, hyp, _ := evalharness.WordErrorRate("", "hello there")
	assert.Equal(t, 1.0, wer)
	assert.Equal(t, 0, ref)
	assert.Equal(t, 2, hyp)
}

func TestWordErrorRateNormalizesPunctuationAndCase(t *testing.T) {
	wer, _, _, edits := evalharness.WordErrorRate("Hello, world!", "hello world")
	assert.Equal(t, 0, edits)
	assert.Equal(t, 0.0, wer)
}

func TestDecodeAudioFileMissingPathErrors(t *testing.T) {
	_, err := evalharness.DecodeAudioFile(context.Background(), "/nonexistent/no-such-file.wav", 16000)
	assert.Error(t, err)
}

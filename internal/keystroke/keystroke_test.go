package keystroke_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/keystroke"
)

func TestNormalizeEmitTextRawPassesThrough(t *testing.T) {
	got := keystroke.NormalizeEmitText("hello   world.", keystroke.PunctuationRaw, 6)
	assert.Equal(t, "hello world.", got)
}

func TestNormalizeEmitTextMinimalStripsPunctuation(t *testing.T) {
	got := keystroke.NormalizeEmitText("hello, world!", keystroke.PunctuationMinimal, 6)
	assert.Equal(t, "hello world", got)
}

func TestNormalizeEmitTextAdaptiveStripsTerminalOnShortChunk(t *testing.T) {
	got := keystroke.NormalizeEmitText("turn it off.", keystroke.PunctuationAdaptive, 6)
	assert.Equal(t, "turn it off", got)
}

func TestNormalizeEmitTextAdaptiveKeepsTerminalOnLongChunk(t *testing.T) {
	got := keystroke.NormalizeEmitText("this is a reasonably long sentence that keeps its period.", keystroke.PunctuationAdaptive, 6)
	assert.Equal(t, "this is a reasonably long sentence that keeps its period.", got)
}

func TestNormalizeEmitTextAdaptiveCollapsesRepeatedPunctuation(t *testing.T) {
	// Two words is within the short-sentence limit, so the terminal "??"
	// is dropped as well; the doubled comma collapses to one.
	got := keystroke.NormalizeEmitText("wait,, really??", keystroke.PunctuationAdaptive, 6)
	assert.Equal(t, "wait, really", got)
}

func TestEmitterDeleteLastWordsOnEmptyLedgerIsNoop(t *testing.T) {
	e := keystroke.NewEmitter(2)
	assert.Equal(t, 0, e.DeleteLastWords(3))
}

func TestEmitterResetClearsLastChar(t *testing.T) {
	e := keystroke.NewEmitter(2)
	e.Reset()
	assert.Equal(t, "", e.LastChar())
}

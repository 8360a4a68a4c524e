package decoder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/decoder"
	"github.com/speechdesk/speechdesk/internal/keystroke"
)

func TestResolveTailUpdateNoHistoryAcceptsWholeCandidate(t *testing.T) {
	deleteN, newWords := decoder.ResolveTailUpdate(nil, []string{"hello", "world"}, 3, 2)
	assert.Equal(t, 0, deleteN)
	assert.Equal(t, []string{"hello", "world"}, newWords)
}

func TestResolveTailUpdateExactRepeatYieldsNothingNew(t *testing.T) {
	history := []string{"turn", "on", "the", "lights"}
	deleteN, newWords := decoder.ResolveTailUpdate(history, []string{"the", "lights"}, 3, 2)
	assert.Equal(t, 0, deleteN)
	assert.Empty(t, newWords)
}

func TestResolveTailUpdateRevisesTrailingWords(t *testing.T) {
	history := []string{"turn", "on", "the", "light"}
	// New decode corrects "light" -> "lights" and adds "please": overlap
	// against trimmed history (drop "light") must reach "the" to anchor.
	deleteN, newWords := decoder.ResolveTailUpdate(history, []string{"the", "lights", "please"}, 3, 1)
	assert.Equal(t, 1, deleteN)
	assert.Equal(t, []string{"lights", "please"}, newWords)
}

func TestResolveTailUpdateRejectsDeleteWithNothingNew(t *testing.T) {
	history := []string{"turn", "on", "the", "light"}
	deleteN, newWords := decoder.ResolveTailUpdate(history, []string{"the", "light"}, 3, 1)
	assert.Equal(t, 0, deleteN)
	assert.Empty(t, newWords)
}

func TestCommitStableWordsSkipsHallucinationText(t *testing.T) {
	s := decoder.NewSession(decoder.Config{
		TailRevisionMaxWords:       3,
		TailRevisionMinAnchorWords: 2,
		MinEmitWords:               1,
		PunctuationStyle:           keystroke.PunctuationAdaptive,
		ShortSentenceTerminalWords: 6,
	}, keystroke.NewEmitter(2))

	s.CommitStableWords([]string{"silence"}, 0)
	assert.Empty(t, s.EmittedWords())
}

func TestCommitStableWordsGuardsTrailingWords(t *testing.T) {
	s := decoder.NewSession(decoder.Config{
		TailRevisionMaxWords:       3,
		TailRevisionMinAnchorWords: 2,
		MinEmitWords:               1,
		PunctuationStyle:           keystroke.PunctuationAdaptive,
		ShortSentenceTerminalWords: 6,
	}, keystroke.NewEmitter(2))

	s.CommitStableWords([]string{"hello", "world"}, 1)
	assert.Equal(t, []string{"hello"}, s.EmittedWords())
}

func TestCommitStableWordsAppendsNewWords(t *testing.T) {
	s := decoder.NewSession(decoder.Config{
		TailRevisionMaxWords:       3,
		TailRevisionMinAnchorWords: 2,
		MinEmitWords:               1,
		EmitHistoryWords:           72,
		PunctuationStyle:           keystroke.PunctuationRaw,
	}, keystroke.NewEmitter(2))

	s.CommitStableWords([]string{"turn", "on", "the", "lights"}, 0)
	assert.Equal(t, []string{"turn", "on", "the", "lights"}, s.EmittedWords())
}

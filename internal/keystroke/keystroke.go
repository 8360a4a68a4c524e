// Package keystroke emits and retracts typed text through ydotool,
// tracking exactly what was typed so the decoder can backspace over its
// own tail revisions by the number of characters it typed for them.
package keystroke

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	keyBackspaceDown = "14:1"
	keyBackspaceUp   = "14:0"
	backspaceBatch   = 40
	ydotoolTimeout   = 20 * time.Second
)

// PunctuationStyle controls how emitted text is normalized before typing.
type PunctuationStyle string

const (
	PunctuationRaw      PunctuationStyle = "raw"
	PunctuationMinimal  PunctuationStyle = "minimal"
	PunctuationAdaptive PunctuationStyle = "adaptive"
)

var (
	wsRunRE            = regexp.MustCompile(`\s+`)
	spaceBeforePunctRE = regexp.MustCompile(`\s+([,.;:!?])`)
	stripPunctRE       = regexp.MustCompile(`[,:;!?]`)
	trailingDotsRE     = regexp.MustCompile(`\.+$`)
	terminalPunctRE    = regexp.MustCompile(`[.?!]+$`)
	repeatedPunctRE    = regexp.MustCompile(`([,;:!?]){2,}`)
	repeatedDotsRE     = regexp.MustCompile(`\.{2,}`)
	tokenRE            = regexp.MustCompile(`\S+`)
)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(wsRunRE.ReplaceAllString(s, " "))
}

// NormalizeEmitText applies the configured punctuation style. Adaptive
// strips a trailing terminal mark (.?!) from utterances of
// shortSentenceTerminalWords or fewer words, on the theory that a short
// mid-thought fragment is rarely a real sentence boundary.
func NormalizeEmitText(text string, style PunctuationStyle, shortSentenceTerminalWords int) string {
	out := collapseWhitespace(text)
	if out == "" {
		return ""
	}

	switch style {
	case PunctuationRaw:
		return out
	case PunctuationMinimal:
		out = spaceBeforePunctRE.ReplaceAllString(out, "$1")
		out = stripPunctRE.ReplaceAllString(out, "")
		out = trailingDotsRE.ReplaceAllString(out, "")
		return collapseWhitespace(out)
	default: // adaptive
		out = spaceBeforePunctRE.ReplaceAllString(out, "$1")
		words := strings.Fields(out)
		limit := shortSentenceTerminalWords
		if limit < 1 {
			limit = 1
		}
		if len(words) <= limit {
			out = terminalPunctRE.ReplaceAllString(out, "")
		}
		out = repeatedPunctRE.ReplaceAllString(out, "$1")
		out = repeatedDotsRE.ReplaceAllString(out, ".")
		return collapseWhitespace(out)
	}
}

// splitWordPiecesForBackspace breaks text into pieces such that each
// non-space token carries its own leading space, so deleting N trailing
// pieces removes exactly N words plus the space that preceded each.
func splitWordPiecesForBackspace(text string) []string {
	var pieces []string
	for _, loc := range tokenRE.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		pieceStart := start
		if start > 0 && text[start-1] == ' ' {
			pieceStart = start - 1
		}
		pieces = append(pieces, text[pieceStart:end])
	}
	return pieces
}

// Emitter types text via ydotool and remembers exactly what it typed, so
// it can backspace over its own output precisely.
type Emitter struct {
	KeyDelayMs int
	Debug      bool

	lastChar    string
	typedPieces []string
}

// NewEmitter constructs an Emitter with the given ydotool key delay.
func NewEmitter(keyDelayMs int) *Emitter {
	return &Emitter{KeyDelayMs: keyDelayMs}
}

// LastChar returns the final character of the most recently typed text,
// empty if nothing has been typed yet (or the ledger was cleared).
func (e *Emitter) LastChar() string { return e.lastChar }

// Reset clears the typed-piece ledger and last-char state, used when a
// session boundary (typing toggled off, auto-stop, mode switch) means
// prior output should no longer be considered retractable.
func (e *Emitter) Reset() {
	e.lastChar = ""
	e.typedPieces = nil
}

// Type normalizes text per style and sends it to ydotool, prefixing a
// space when the previous emission didn't end on whitespace or an
// opening bracket and the new text doesn't open with closing punctuation.
// On success the typed-piece ledger is extended so later revisions can
// backspace over exactly what was typed.
func (e *Emitter) Type(text string, style PunctuationStyle, shortSentenceTerminalWords int) {
	out := NormalizeEmitText(text, style, shortSentenceTerminalWords)
	if out == "" {
		return
	}

	if e.lastChar != "" && !strings.ContainsAny(e.lastChar, " \n\t([{") && !strings.ContainsRune(".,!?;:)]}", rune(out[0])) {
		out = " " + out
	}

	ctx, cancel := context.WithTimeout(context.Background(), ydotoolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ydotool", "type", "--key-delay", fmt.Sprint(e.KeyDelayMs), "--file", "-")
	cmd.Stdin = strings.NewReader(out)
	if err := cmd.Run(); err != nil {
		if e.Debug {
			log.Printf("keystroke: ydotool type failed: %v", err)
		}
		return
	}

	e.lastChar = string(out[len(out)-1])
	e.typedPieces = append(e.typedPieces, splitWordPiecesForBackspace(out)...)
}

// DeleteLastWords removes up to wordCount trailing typed pieces from the
// ledger and sends the matching number of backspaces, returning how many
// words were actually removed (bounded by what the ledger holds).
func (e *Emitter) DeleteLastWords(wordCount int) int {
	if wordCount <= 0 || len(e.typedPieces) == 0 {
		return 0
	}

	toRemove := wordCount
	if toRemove > len(e.typedPieces) {
		toRemove = len(e.typedPieces)
	}

	chars := 0
	for _, piece := range e.typedPieces[len(e.typedPieces)-toRemove:] {
		chars += len(piece)
	}
	e.pressBackspace(chars)
	e.typedPieces = e.typedPieces[:len(e.typedPieces)-toRemove]

	if len(e.typedPieces) > 0 {
		last := e.typedPieces[len(e.typedPieces)-1]
		e.lastChar = string(last[len(last)-1])
	} else {
		e.lastChar = ""
	}
	return toRemove
}

// pressBackspace sends chars backspace key-events in batches of 40,
// aborting the remaining batches if ydotool reports an error.
func (e *Emitter) pressBackspace(chars int) {
	if chars <= 0 {
		return
	}

	remaining := chars
	for remaining > 0 {
		chunk := remaining
		if chunk > backspaceBatch {
			chunk = backspaceBatch
		}

		events := make([]string, 0, chunk*2)
		for i := 0; i < chunk; i++ {
			events = append(events, keyBackspaceDown, keyBackspaceUp)
		}

		ctx, cancel := context.WithTimeout(context.Background(), ydotoolTimeout)
		args := append([]string{"key", "--key-delay", fmt.Sprint(e.KeyDelayMs)}, events...)
		err := exec.CommandContext(ctx, "ydotool", args...).Run()
		cancel()
		if err != nil {
			if e.Debug {
				log.Printf("keystroke: ydotool backspace failed: %v", err)
			}
			return
		}

		remaining -= chunk
	}
}

package command_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/cmdconfig"
	"github.com/speechdesk/speechdesk/internal/command"
	"github.com/speechdesk/speechdesk/internal/intent"
)

func TestChooseFinalTextPrefersLongerOnNearIdenticalPrefix(t *testing.T) {
	got := command.ChooseFinalText("open the terminal", "open the terminal please", 2)
	assert.Equal(t, "open the terminal please", got)
}

func TestChooseFinalTextKeepsPendingWhenDecodedHasNoAnchorOverlap(t *testing.T) {
	got := command.ChooseFinalText("open the terminal", "completely unrelated text here", 2)
	assert.Equal(t, "open the terminal", got)
}

func TestChooseFinalTextPrefersDecodedOnTailOverlap(t *testing.T) {
	got := command.ChooseFinalText("please open the terminal", "open the terminal now", 2)
	assert.Equal(t, "open the terminal now", got)
}

func TestChooseFinalTextEmptyPendingReturnsDecoded(t *testing.T) {
	assert.Equal(t, "open terminal", command.ChooseFinalText("", "open terminal", 2))
}

func TestChooseFinalTextEmptyDecodedReturnsPending(t *testing.T) {
	assert.Equal(t, "open terminal", command.ChooseFinalText("open terminal", "", 2))
}

type recordingExecutor struct {
	customCalls int
	intentCalls int
	lastIntent  intent.Intent
}

func (r *recordingExecutor) ExecuteCustom(cmdconfig.Command) bool { r.customCalls++; return true }
func (r *recordingExecutor) ExecuteIntent(i intent.Intent) bool {
	r.intentCalls++
	r.lastIntent = i
	return true
}

func TestSessionRequiresConfirmationRepetitionsBeforeExecuting(t *testing.T) {
	cfg := command.Config{CommandConfirmRepetitions: 2, CommandCooldownSeconds: 0}
	exec := &recordingExecutor{}
	s := command.NewSessionWithExecutor(cfg, cmdconfig.Default(), exec)

	now := time.Now()
	executed := s.ObserveUtterance("open the terminal", now)
	assert.False(t, executed, "first observation should only arm the candidate")

	executed = s.ObserveUtterance("open the terminal", now.Add(500*time.Millisecond))
	assert.True(t, executed, "second matching observation should confirm and execute")
	assert.Equal(t, 1, exec.intentCalls)
}

func TestSessionResetsCandidateOnDifferentUtterance(t *testing.T) {
	cfg := command.Config{CommandConfirmRepetitions: 2, CommandCooldownSeconds: 0}
	s := command.NewSessionWithExecutor(cfg, cmdconfig.Default(), &recordingExecutor{})

	now := time.Now()
	s.ObserveUtterance("open the terminal", now)
	executed := s.ObserveUtterance("open the browser", now.Add(200*time.Millisecond))
	assert.False(t, executed, "switching targets should restart the confirmation count")
}

func TestSessionCooldownBlocksImmediateReExecution(t *testing.T) {
	cfg := command.Config{CommandConfirmRepetitions: 1, CommandCooldownSeconds: 5}
	exec := &recordingExecutor{}
	s := command.NewSessionWithExecutor(cfg, cmdconfig.Default(), exec)

	now := time.Now()
	first := s.ObserveUtterance("open the terminal", now)
	assert.True(t, first)

	second := s.ObserveUtterance("open the terminal", now.Add(1*time.Second))
	assert.False(t, second, "cooldown should suppress immediate repeat execution")
	assert.Equal(t, 1, exec.intentCalls)
}

func TestSessionFinalizeOnUnresolvedTextReturnsFalse(t *testing.T) {
	// High confirmation threshold keeps ObserveUtterance from executing
	// on its own, so only Finalize's path is under test here.
	cfg := command.Config{MinFinalAnchorWords: 2, CommandConfirmRepetitions: 100}
	s := command.NewSessionWithExecutor(cfg, cmdconfig.Default(), &recordingExecutor{})
	s.ObserveUtterance("the weather is nice today", time.Now())

	assert.False(t, s.Finalize(""))
	assert.Equal(t, "", s.PhraseText(), "finalize must clear pending phrase regardless of outcome")
}

func TestSessionFinalizeExecutesResolvedIntent(t *testing.T) {
	cfg := command.Config{MinFinalAnchorWords: 2, CommandConfirmRepetitions: 100}
	exec := &recordingExecutor{}
	s := command.NewSessionWithExecutor(cfg, cmdconfig.Default(), exec)
	s.ObserveUtterance("open the term", time.Now())

	ok := s.Finalize("open the terminal")
	assert.True(t, ok)
	assert.Equal(t, 1, exec.intentCalls)
	assert.Equal(t, "open", exec.lastIntent.Kind)
}

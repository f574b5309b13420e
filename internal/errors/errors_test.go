package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapCarriesCode(t *testing.T) {
	base := PlanningError("planner returned malformed JSON", fmt.Errorf("unexpected token"))
	wrapped := Wrap(base, "research run failed")

	assert.Equal(t, CodePlanningError, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, CodePlanningError))
	assert.Contains(t, wrapped.Error(), "research run failed")
	assert.Contains(t, wrapped.Error(), "unexpected token")
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "context")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestHasCodeThroughFmtWrapping(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("web stage: %w", CollaboratorUnavailable("web search", cause))

	assert.True(t, HasCode(err, CodeCollaboratorUnavailable))
	assert.False(t, HasCode(err, CodePlanningError))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, CodeCollaboratorUnavailable, GetCode(err))
}

func TestGetCodeUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.False(t, IsAppError(stderrors.New("plain")))
	assert.True(t, IsAppError(NotFound("run")))
}

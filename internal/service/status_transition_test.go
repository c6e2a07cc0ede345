package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campusconnect/backend/internal/model"
)

func TestTransitionTable(t *testing.T) {
	assert.True(t, feedbackTransitions.Known(model.FeedbackStatusNew))
	assert.False(t, feedbackTransitions.Known(model.BugStatusOpen))
	assert.False(t, bugTransitions.Known(model.FeedbackStatusReviewed))

	assert.True(t, feedbackTransitions.Allows(model.FeedbackStatusNew, model.FeedbackStatusReviewed))
	assert.True(t, feedbackTransitions.Allows(model.FeedbackStatusDismissed, model.FeedbackStatusReviewed))
	assert.False(t, feedbackTransitions.Allows(model.FeedbackStatusNew, model.FeedbackStatusResolved))
	assert.False(t, feedbackTransitions.Allows(model.FeedbackStatusResolved, model.FeedbackStatusNew))

	assert.True(t, bugTransitions.Allows(model.BugStatusOpen, model.BugStatusClosed))
	assert.True(t, bugTransitions.Allows(model.BugStatusWontFix, model.BugStatusOpen))
	assert.False(t, bugTransitions.Allows(model.BugStatusClosed, model.BugStatusResolved))

	// 状态不变只对已知状态成立
	assert.True(t, bugTransitions.Allows(model.BugStatusClosed, model.BugStatusClosed))
	assert.False(t, bugTransitions.Allows("archived", "archived"))
}

func TestTransitionTable_EveryTargetIsKnown(t *testing.T) {
	for name, table := range map[string]transitionTable{"feedback": feedbackTransitions, "bug": bugTransitions} {
		for from, targets := range table {
			for _, to := range targets {
				assert.Truef(t, table.Known(to), "%s: %s → %s 指向未知状态", name, from, to)
			}
		}
	}
}

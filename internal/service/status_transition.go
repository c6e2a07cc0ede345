package service

import "campusconnect/backend/internal/model"

// transitionTable 状态 → 允许流转到的状态
type transitionTable map[string][]string

// feedbackTransitions 反馈状态流转
var feedbackTransitions = transitionTable{
	model.FeedbackStatusNew:       {model.FeedbackStatusReviewed, model.FeedbackStatusDismissed},
	model.FeedbackStatusReviewed:  {model.FeedbackStatusResolved, model.FeedbackStatusDismissed},
	model.FeedbackStatusResolved:  {model.FeedbackStatusReviewed},
	model.FeedbackStatusDismissed: {model.FeedbackStatusReviewed},
}

// bugTransitions 缺陷状态流转
var bugTransitions = transitionTable{
	model.BugStatusOpen:       {model.BugStatusInProgress, model.BugStatusWontFix, model.BugStatusClosed},
	model.BugStatusInProgress: {model.BugStatusResolved, model.BugStatusOpen, model.BugStatusWontFix},
	model.BugStatusResolved:   {model.BugStatusClosed, model.BugStatusOpen},
	model.BugStatusClosed:     {model.BugStatusOpen},
	model.BugStatusWontFix:    {model.BugStatusOpen},
}

// Known 是否为该实体的合法状态
func (t transitionTable) Known(status string) bool {
	_, ok := t[status]
	return ok
}

// Allows from → to 是否允许；状态不变视为允许（仅更新备注）
func (t transitionTable) Allows(from, to string) bool {
	if from == to {
		return t.Known(from)
	}
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

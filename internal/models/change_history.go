package models

// Action tags a change history entry.
type Action string

const (
	ActionUserRegistered Action = "USER_REGISTERED"
	ActionUserUpdated    Action = "USER_UPDATED"
	ActionPaymentAdded   Action = "PAYMENT_ADDED"
	ActionCheckInAdded   Action = "CHECK_IN_ADDED"
	ActionCheckInRemoved Action = "CHECK_IN_REMOVED"
	ActionCommentUpdated Action = "COMMENT_UPDATED"
)

func (a Action) Valid() bool {
	switch a {
	case ActionUserRegistered, ActionUserUpdated, ActionPaymentAdded,
		ActionCheckInAdded, ActionCheckInRemoved, ActionCommentUpdated:
		return true
	}
	return false
}

// ChangeEntry is one line of a record's audit trail. Entries are kept oldest first.
type ChangeEntry struct {
	Timestamp   string `json:"timestamp"`
	Action      Action `json:"action"`
	Description string `json:"description"`
}

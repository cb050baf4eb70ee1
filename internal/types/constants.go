package types

const ContextUserKey = "user"

// Membership roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusCompleted  = "completed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const DefaultProjectColor = "#6366F1"

// MaxAttachmentSize is the upload ceiling (10 MiB).
const MaxAttachmentSize = 10 << 20

func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusCompleted:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ValidRole(r string) bool {
	return r == RoleOwner || r == RoleMember
}

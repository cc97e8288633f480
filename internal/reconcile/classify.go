package reconcile

import "strings"

// EventKind is the closed set of feed event kinds.
type EventKind int

const (
	EventOther EventKind = iota
	EventLogin
	EventPasswordChange
	EventAdminGrant
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventPasswordChange:
		return "password_change"
	case EventAdminGrant:
		return "admin_grant"
	default:
		return "other"
	}
}

// AdminGrantDescription is the exact description of a role grant event.
const AdminGrantDescription = "Admin Role Granted"

// Event is a classified feed description. Description is kept for EventOther.
type Event struct {
	Kind        EventKind
	Description string
}

// Classify maps a free-text description onto an Event. Checks run in
// order: "login" anywhere (any case), then "password" anywhere (any case),
// then the exact admin grant text. Everything else is EventOther.
func Classify(description string) Event {
	d := strings.TrimSpace(description)
	lower := strings.ToLower(d)

	switch {
	case strings.Contains(lower, "login"):
		return Event{Kind: EventLogin, Description: d}
	case strings.Contains(lower, "password"):
		return Event{Kind: EventPasswordChange, Description: d}
	case d == AdminGrantDescription:
		return Event{Kind: EventAdminGrant, Description: d}
	default:
		return Event{Kind: EventOther, Description: d}
	}
}

package models

// UserRecord is the persisted identity record, keyed by Email.
// Timestamp fields hold ISO 8601 strings or "" when unknown.
type UserRecord struct {
	Email           string      `json:"email" firestore:"email"`
	ID              string      `json:"id" firestore:"id"`
	Name            string      `json:"name" firestore:"name"`
	Admin           bool        `json:"admin" firestore:"admin"`
	LastLogin       string      `json:"lastLogin" firestore:"lastLogin"`
	PasswordChanged string      `json:"passwordChanged" firestore:"passwordChanged"`
	StatusChanged   string      `json:"statusChanged" firestore:"statusChanged"`
	UserEvents      []UserEvent `json:"userEvents" firestore:"userEvents"`
}

// HasEvent reports whether an identical event is already recorded.
func (u *UserRecord) HasEvent(ev UserEvent) bool {
	for _, e := range u.UserEvents {
		if e == ev {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing the events slice.
func (u UserRecord) Clone() UserRecord {
	out := u
	if u.UserEvents != nil {
		out.UserEvents = make([]UserEvent, len(u.UserEvents))
		copy(out.UserEvents, u.UserEvents)
	}
	return out
}

// Projected field names understood by the projector and the reconciler.
const (
	FieldID              = "id"
	FieldEmail           = "email"
	FieldName            = "name"
	FieldAdmin           = "admin"
	FieldLastLogin       = "lastLogin"
	FieldPasswordChanged = "passwordChanged"
	FieldStatusChanged   = "statusChanged"
)

// SyncFieldSet is the field subset requested from the IdP during a full sync.
var SyncFieldSet = []string{
	FieldID,
	FieldStatusChanged,
	FieldLastLogin,
	FieldPasswordChanged,
	FieldName,
	FieldEmail,
}

// RawUser is an IdP user record as decoded from JSON.
type RawUser map[string]any

// ID returns the record's source identifier, or "" when missing.
func (r RawUser) ID() string {
	if v, ok := r[FieldID].(string); ok {
		return v
	}
	return ""
}

// ProjectedFields is the flat field subset extracted from one RawUser.
type ProjectedFields map[string]any

// String returns the field as a string. Absent and null values yield "".
func (p ProjectedFields) String(field string) string {
	switch v := p[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return ""
	}
}

// Admin returns the admin flag and whether it has been set.
func (p ProjectedFields) Admin() (bool, bool) {
	v, ok := p[FieldAdmin].(bool)
	return v, ok
}

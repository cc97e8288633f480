package models

// ScanFeedRequest is the POST /feeds/scan payload.
// s3_link keeps the field name existing clients already send; any http(s) or gs:// link works.
type ScanFeedRequest struct {
	S3Link string `json:"s3_link" binding:"required"`
}

// LoginStatusResponse is returned by GET /users/:email.
type LoginStatusResponse struct {
	Email     string `json:"email"`
	LastLogin string `json:"last_login,omitempty"`
	Message   string `json:"message"`
}

// PasswordStatusResponse is returned by GET /users/:email/password.
type PasswordStatusResponse struct {
	Email           string `json:"email"`
	PasswordChanged string `json:"password_changed,omitempty"`
	Message         string `json:"message"`
}

// StaleAdminsResponse is returned by GET /admins/stale-passwords.
type StaleAdminsResponse struct {
	ThresholdDays int          `json:"threshold_days"`
	Count         int          `json:"count"`
	Admins        []UserRecord `json:"admins"`
}

// ErrorResponse is the error envelope every handler renders.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

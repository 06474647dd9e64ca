package models

// WhatsAppCredentials is the per-deployment bundle required to call the
// Cloud API. Resolved fresh per operation, never cached process-wide.
type WhatsAppCredentials struct {
	VerifyToken   string
	Token         string
	PhoneNumberID string
	WabaID        string
}

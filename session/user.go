package session

// User is the identity record the server returns on login. The fields beyond
// the identifier and email are passed through for display only.
type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

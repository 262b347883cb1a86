package domain

// Session is the caller identity handed explicitly to everything that talks to the portal.
type Session struct {
	Token   string
	Subject string
	Role    string
}

// Namespace scopes offline records to one user, the way browser storage is scoped to an origin.
func (s Session) Namespace() string {
	if s.Subject == "" {
		return "anonymous"
	}
	return s.Subject
}

package domain

// Session identifies the caller of a service operation. It is passed
// explicitly to every service method instead of living in ambient state.
type Session struct {
	AccountID string
	AuthToken string
}

func (s Session) Valid() bool {
	return s.AccountID != ""
}

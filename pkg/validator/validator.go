package validator

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var (
	usernameRegex   = regexp.MustCompile(`^[\p{L}\p{N}_.-]+$`)
	inviteCodeRegex = regexp.MustCompile(`^[0-9a-z]+$`)
)

func ValidateSignUp(email, password, inviteCode string) ValidationErrors {
	errs := make(ValidationErrors)
	validateEmail(email, errs)
	validatePassword(password, errs)

	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode != "" && !inviteCodeRegex.MatchString(inviteCode) {
		errs.Add("inviteCode", "Invite code can only contain lowercase letters and numbers")
	}
	return errs
}

func ValidateSignIn(email, password string) ValidationErrors {
	errs := make(ValidationErrors)
	validateEmail(email, errs)
	if password == "" {
		errs.Add("password", "Password is required")
	}
	return errs
}

// ValidateProfile checks only the fields that are being changed.
func ValidateProfile(username, location *string) ValidationErrors {
	errs := make(ValidationErrors)

	if username != nil {
		name := strings.TrimSpace(*username)
		switch {
		case name == "":
			errs.Add("username", "Username is required")
		case len(name) > 32:
			errs.Add("username", "Username is too long")
		case !usernameRegex.MatchString(name):
			errs.Add("username", "Username can only contain letters, numbers, _, . and -")
		}
	}

	if location != nil && len(strings.TrimSpace(*location)) > 100 {
		errs.Add("location", "Location is too long")
	}

	if username == nil && location == nil {
		errs.Add("profile", "Nothing to update")
	}
	return errs
}

func ValidateEvent(title string, start, end time.Time) ValidationErrors {
	errs := make(ValidationErrors)

	title = strings.TrimSpace(title)
	if title == "" {
		errs.Add("title", "Title is required")
	} else if len(title) > 200 {
		errs.Add("title", "Title is too long")
	}

	if start.IsZero() {
		errs.Add("start", "Start time is required")
	} else if !end.IsZero() && end.Before(start) {
		errs.Add("end", "End must not be before start")
	}
	return errs
}

func ValidateText(field, text string, maxLen int) ValidationErrors {
	errs := make(ValidationErrors)
	text = strings.TrimSpace(text)
	if text == "" {
		errs.Add(field, "Text is required")
	} else if len(text) > maxLen {
		errs.Add(field, "Text is too long")
	}
	return errs
}

func validateEmail(email string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 6 {
		errs.Add("password", "Password must be at least 6 characters")
		return
	}
	if len(password) > 128 {
		errs.Add("password", "Password is too long")
	}
}

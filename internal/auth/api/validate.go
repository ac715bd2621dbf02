package authapi

import (
	"net/mail"
	"strings"
)

const (
	minUsernameLen = 6
	minPasswordLen = 8
)

// validateUsername mirrors the registration contract: at least six
// characters after trimming.
func validateUsername(username string) (string, bool) {
	u := strings.TrimSpace(username)
	return u, len(u) >= minUsernameLen
}

func validatePassword(password string) bool {
	return len(strings.TrimSpace(password)) >= minPasswordLen
}

func validateEmail(email string) (string, bool) {
	e := strings.TrimSpace(email)
	if e == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", false
	}
	return e, true
}

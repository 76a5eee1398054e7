// Package validation holds request payloads and the rules they must pass
// before reaching the service layer.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 12
	maxPasswordLength = 128
	passwordSpecials  = "@$!%*?&"
)

var (
	employeeIDRegex = regexp.MustCompile(`^EMP\d{6}$`)
	emailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	n := len([]rune(password))
	if n < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	if n > maxPasswordLength {
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}
	if !hasSpecial {
		return fmt.Errorf("password must contain at least one special character (%s)", passwordSpecials)
	}
	return nil
}

// ValidateEmail checks the address format and, when domain is set, that it
// belongs to that domain.
func ValidateEmail(email, domain string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	if domain != "" && !strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(domain)) {
		return fmt.Errorf("must be a valid @%s email address", domain)
	}
	return nil
}

// ValidateEmployeeID checks the EMP000000 format.
func ValidateEmployeeID(id string) error {
	if !employeeIDRegex.MatchString(id) {
		return fmt.Errorf("employee ID must be in format EMP000000")
	}
	return nil
}

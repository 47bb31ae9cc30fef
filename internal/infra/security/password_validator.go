package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	minPasswordLength = 10
	minZxcvbnScore    = 3
)

// ValidatePassword applies the account password policy: length, character
// classes, and an entropy estimate. User inputs (email, name) are fed to the
// estimator so derivations of them score poorly.
func ValidatePassword(password string, userInputs ...string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain upper case, lower case and numeric characters")
	}

	if result := zxcvbn.PasswordStrength(password, userInputs); result.Score < minZxcvbnScore {
		return fmt.Errorf("password is too predictable")
	}

	return nil
}

package consoleauth

import "strings"

// OTPLength is the number of digits in a one-time passcode.
const OTPLength = 6

// SanitizeOTP keeps only ASCII digits from raw input and truncates to
// OTPLength. It is meant for the point of entry (each keystroke or pasted
// value), mirroring an input field that refuses non-digits.
func SanitizeOTP(raw string) string {
	var b strings.Builder
	b.Grow(OTPLength)
	for _, r := range raw {
		if b.Len() == OTPLength {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateOTP checks that code is exactly OTPLength ASCII digits.
func ValidateOTP(code string) error {
	if len(code) != OTPLength {
		return newLocalValidationError("Please enter the 6-digit code.")
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return newLocalValidationError("The code must contain digits only.")
		}
	}
	return nil
}

// ValidateCredentials checks the login form before anything is sent.
func ValidateCredentials(c Credentials) error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return newLocalValidationError("Please enter both username and password.")
	}
	return validateRole(c.Role)
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return newLocalValidationError("Your login session has expired. Please sign in again.")
	}
	return nil
}

func validateRole(r Role) error {
	if !r.Valid() {
		return newLocalValidationError("Unknown user type.")
	}
	return nil
}

package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 20

	MinPasswordLength = 6
	// MaxAvatarBytes is the largest avatar the API accepts.
	MaxAvatarBytes = 10 * 1024 * 1024
)

func ValidateConcurrency(workers int) error {
	if workers < MinConcurrency || workers > MaxConcurrency {
		return fmt.Errorf("concurrency must be between %d and %d, got %d", MinConcurrency, MaxConcurrency, workers)
	}
	return nil
}

func ValidateExerciseID(id int) error {
	if id <= 0 {
		return fmt.Errorf("exercise ID must be a positive integer, got %d", id)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateEmail accepts a bare address such as ana@example.com.
func ValidateEmail(email string) error {
	if err := ValidateNonEmptyString("email", email); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

func ValidatePasswordConfirmation(password, confirmation string) error {
	if password != confirmation {
		return fmt.Errorf("password confirmation does not match")
	}
	return nil
}

// ValidateProfileUpdate checks a profile change. A new password is optional,
// but when given it needs the old one and a matching confirmation.
func ValidateProfileUpdate(name, password, confirmation, oldPassword string) error {
	if err := ValidateNonEmptyString("name", name); err != nil {
		return err
	}
	if password == "" {
		return nil
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if err := ValidatePasswordConfirmation(password, confirmation); err != nil {
		return err
	}
	return ValidateNonEmptyString("old password", oldPassword)
}

func ValidateAvatarSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("avatar file is empty")
	}
	if size > MaxAvatarBytes {
		return fmt.Errorf("avatar is too large: %.1f MB (limit is %d MB)", float64(size)/1024/1024, MaxAvatarBytes/1024/1024)
	}
	return nil
}

func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL: %q (must be an absolute http or https URL)", raw)
	}
	return nil
}

package components

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/kaybank-ledger/internal/config"
	"github.com/kaybank-ledger/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVault validates identity fields against the configured policy
// and hashes passwords with bcrypt. Plaintext passwords are never logged.
type CredentialVault struct {
	policy          config.CredentialsConfig
	fullNamePattern *regexp.Regexp
	usernamePattern *regexp.Regexp
	logger          *slog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewCredentialVault(policy config.CredentialsConfig, logger *slog.Logger) (*CredentialVault, error) {
	fullName, err := regexp.Compile(policy.FullNamePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile full name pattern: %w", err)
	}
	username, err := regexp.Compile(policy.UsernamePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile username pattern: %w", err)
	}

	return &CredentialVault{
		policy:          policy,
		fullNamePattern: fullName,
		usernamePattern: username,
		logger:          logger,
	}, nil
}

// ValidateIdentity checks every field and returns all failures as
// shared.ValidationErrors. Username uniqueness is enforced by the store.
func (v *CredentialVault) ValidateIdentity(fullName, username, password string) error {
	var errs shared.ValidationErrors
	if reason := v.checkFullName(fullName); reason != "" {
		errs = append(errs, shared.ValidationError{Field: "full_name", Reason: reason})
	}
	if reason := v.checkUsername(username); reason != "" {
		errs = append(errs, shared.ValidationError{Field: "username", Reason: reason})
	}
	if reason := v.checkPassword(password); reason != "" {
		errs = append(errs, shared.ValidationError{Field: "password", Reason: reason})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *CredentialVault) checkFullName(fullName string) string {
	n := utf8.RuneCountInString(fullName)
	if n < v.policy.FullNameMinLength || n > v.policy.FullNameMaxLength {
		return fmt.Sprintf("must be between %d and %d characters", v.policy.FullNameMinLength, v.policy.FullNameMaxLength)
	}
	if !v.fullNamePattern.MatchString(fullName) {
		return "must contain only letters separated by single spaces"
	}
	words := len(strings.Fields(fullName))
	if words < v.policy.FullNameMinWords || words > v.policy.FullNameMaxWords {
		return fmt.Sprintf("must have between %d and %d words", v.policy.FullNameMinWords, v.policy.FullNameMaxWords)
	}
	return ""
}

func (v *CredentialVault) checkUsername(username string) string {
	n := utf8.RuneCountInString(username)
	if n < v.policy.UsernameMinLength || n > v.policy.UsernameMaxLength {
		return fmt.Sprintf("must be between %d and %d characters", v.policy.UsernameMinLength, v.policy.UsernameMaxLength)
	}
	if !v.usernamePattern.MatchString(username) {
		return "contains characters that are not allowed"
	}
	return ""
}

func (v *CredentialVault) checkPassword(password string) string {
	n := utf8.RuneCountInString(password)
	if n < v.policy.PasswordMinLength || n > v.policy.PasswordMaxLength {
		return fmt.Sprintf("must be between %d and %d characters", v.policy.PasswordMinLength, v.policy.PasswordMaxLength)
	}

	var upper, lower, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			other = true
		}
	}

	var missing []string
	if v.policy.PasswordRequireUpper && !upper {
		missing = append(missing, "an uppercase letter")
	}
	if v.policy.PasswordRequireLower && !lower {
		missing = append(missing, "a lowercase letter")
	}
	if v.policy.PasswordRequireDigit && !digit {
		missing = append(missing, "a digit")
	}
	if v.policy.PasswordRequireOther && !other {
		missing = append(missing, "a special character")
	}
	if len(missing) > 0 {
		return "must contain " + strings.Join(missing, ", ")
	}
	return ""
}

// Hash returns a salted bcrypt hash of password
func (v *CredentialVault) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.policy.PasswordHashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches storedHash
func (v *CredentialVault) Verify(password, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	if err != nil && err != bcrypt.ErrMismatchedHashAndPassword {
		v.logger.Warn("Stored password hash is unreadable", "error", err)
	}
	return err == nil
}

// VerifyAbsent spends the same work as Verify for a username that does not exist
func (v *CredentialVault) VerifyAbsent(password string) {
	v.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("absent-account-placeholder"), v.policy.PasswordHashCost)
		if err != nil {
			v.logger.Error("Failed to prepare placeholder hash", "error", err)
			return
		}
		v.dummyHash = hash
	})
	if v.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
	}
}

// Package config loads the ambient, env-driven configuration pieces that
// don't belong to a single handler package.
package config

import (
	"fmt"
	"strings"

	envconfig "github.com/cgast/embird/pkg/config"
)

// PasswordPolicy is the admin-credential strength policy for the C17 login
// route: a minimum length plus a deny-list of known-weak passwords. There is
// no provider selection or JWT issuance here — C17 is a single env-var
// credential check, not a pluggable auth subsystem.
type PasswordPolicy struct {
	MinLength     int
	WeakPasswords []string
}

// LoadPasswordPolicy reads the policy from ADMIN_PASSWORD_MIN_LENGTH (default
// 12) and ADMIN_PASSWORD_DENYLIST (comma-separated, default a short list of
// common weak passwords).
func LoadPasswordPolicy() PasswordPolicy {
	denylist := envconfig.GetEnvString("ADMIN_PASSWORD_DENYLIST", "admin,password,changeme,letmein,12345678")
	weak := make([]string, 0)
	for _, p := range strings.Split(denylist, ",") {
		if p = strings.TrimSpace(p); p != "" {
			weak = append(weak, p)
		}
	}

	return PasswordPolicy{
		MinLength:     envconfig.GetEnvInt("ADMIN_PASSWORD_MIN_LENGTH", 12),
		WeakPasswords: weak,
	}
}

// Validate rejects passwords shorter than MinLength or present verbatim in
// WeakPasswords (case-insensitive).
func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("admin password must be at least %d characters", p.MinLength)
	}
	lower := strings.ToLower(password)
	for _, weak := range p.WeakPasswords {
		if lower == strings.ToLower(weak) {
			return fmt.Errorf("admin password is too common")
		}
	}
	return nil
}

/*
config.go - Backing-store tier selection

PURPOSE:
  Three interchangeable strategies reach the backing store, tried in
  descending order of preference depending on what configuration is
  present:

    1. Direct   - a dedicated SQL connection. Preferred: real
                  BEGIN/COMMIT/ROLLBACK and set-based operations.
    2. Privileged - an API client with an elevated service key. No
                  cross-call transactions (weaker atomicity).
    3. CallerScoped - an API client authenticated as the calling user's
                  session. Last resort; same atomicity caveat as tier 2
                  plus the caller's own access policy.

  Selection happens exactly ONCE at startup from configuration presence,
  never per request and never on runtime failure. Falling back mid-request
  could silently retry an already-partially-applied batch under a
  different identity.

CONFIGURATION SOURCES:
  Flags in cmd/server/main.go, environment variables (loaded from .env):
    ATTENDANCE_DB            path to the SQLite database   -> tier 1
    ATTENDANCE_API_URL       base URL of the data API      -> tiers 2/3
    ATTENDANCE_SERVICE_KEY   elevated credential           -> tier 2
    ATTENDANCE_SESSION_TOKEN caller-scoped credential      -> tier 3
*/
package gateway

import (
	"errors"
	"os"
)

// Tier identifies one backing-store access strategy.
type Tier int

const (
	TierDirect Tier = iota + 1
	TierPrivileged
	TierCallerScoped
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierPrivileged:
		return "privileged"
	case TierCallerScoped:
		return "caller-scoped"
	}
	return "unknown"
}

// Transactional reports whether the tier applies batches in one real
// store transaction.
func (t Tier) Transactional() bool {
	return t == TierDirect
}

// ErrNoBackendConfigured means no tier's configuration is present.
var ErrNoBackendConfigured = errors.New("no backing store configured: set ATTENDANCE_DB, or ATTENDANCE_API_URL with a credential")

// Config holds everything needed to pick and build a backend.
type Config struct {
	DatabasePath string // tier 1
	APIBaseURL   string // tiers 2/3
	ServiceKey   string // tier 2
	SessionToken string // tier 3
}

// ConfigFromEnv reads the tier configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		DatabasePath: os.Getenv("ATTENDANCE_DB"),
		APIBaseURL:   os.Getenv("ATTENDANCE_API_URL"),
		ServiceKey:   os.Getenv("ATTENDANCE_SERVICE_KEY"),
		SessionToken: os.Getenv("ATTENDANCE_SESSION_TOKEN"),
	}
}

// SelectTier picks the highest-preference tier whose configuration is
// present. The decision is made once; callers construct the matching
// backend and never re-evaluate.
func (c Config) SelectTier() (Tier, error) {
	switch {
	case c.DatabasePath != "":
		return TierDirect, nil
	case c.APIBaseURL != "" && c.ServiceKey != "":
		return TierPrivileged, nil
	case c.APIBaseURL != "" && c.SessionToken != "":
		return TierCallerScoped, nil
	}
	return 0, ErrNoBackendConfigured
}

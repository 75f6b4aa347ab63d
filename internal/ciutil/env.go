package ciutil

import (
	"log/slog"
	"os"

	"github.com/phrazzld/throttleq/internal/redact"
)

// Environment variables read by this package.
const (
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvBuildkite     = "BUILDKITE"
	EnvCircleCI      = "CIRCLECI"

	// EnvTestDatabaseURL is the preferred variable for integration tests
	EnvTestDatabaseURL = "THROTTLEQ_TEST_DB_URL"

	// EnvDatabaseURL is the generic fallback
	EnvDatabaseURL = "DATABASE_URL"

	// EnvAppDatabaseURL is the application's own setting, used as a last resort
	EnvAppDatabaseURL = "THROTTLEQ_DATABASE_URL"
)

var ciVars = []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvBuildkite, EnvCircleCI}

// IsCI reports whether the process runs under a CI system.
func IsCI() bool {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// GetEnvWithFallbacks returns the first non-empty variable among envVars, or
// defaultValue. Using any but the first name logs a warning.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for i, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			if i > 0 && logger != nil {
				logger.Warn("using fallback environment variable",
					"used_var", envVar,
					"preferred_var", envVars[0],
					"value", redact.String(val))
			}
			return val
		}
	}
	return defaultValue
}

// TestDatabaseURL returns the integration test database URL, or "" when none
// is configured.
func TestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks(
		[]string{EnvTestDatabaseURL, EnvDatabaseURL, EnvAppDatabaseURL}, "", logger)
}

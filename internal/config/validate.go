package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command mode depends on. Modes: serve,
// analyze, stats, export.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
			problems = append(problems, "server.rate_limit_rps and server.rate_limit_burst must be >= 0")
		}
		if c.Notify.Buffer <= 0 {
			problems = append(problems, "notify.buffer must be > 0")
		}
		problems = append(problems, c.classifierProblems()...)
		problems = append(problems, c.archiveProblems(false)...)
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			problems = append(problems, "monitoring.webhook_url is required when monitoring is enabled")
		}
	case "analyze", "stats":
		problems = append(problems, c.classifierProblems()...)
	case "export":
		problems = append(problems, c.archiveProblems(true)...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if _, err := c.Stats.Location(); err != nil {
		problems = append(problems, "stats.timezone is not a valid IANA zone")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) classifierProblems() []string {
	var problems []string
	switch strings.ToLower(c.Classifier.Provider) {
	case "anthropic":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required for provider anthropic")
		}
	case "openai":
		if c.OpenAI.Key == "" {
			problems = append(problems, "openai.key is required for provider openai")
		}
	case "none":
	default:
		problems = append(problems, "classifier.provider must be anthropic, openai or none")
	}
	if c.Classifier.TimeoutSecs <= 0 {
		problems = append(problems, "classifier.timeout_secs must be > 0")
	}
	if c.Classifier.MaxAttempts < 1 || c.Classifier.MaxAttempts > 10 {
		problems = append(problems, "classifier.max_attempts must be between 1 and 10")
	}
	return problems
}

func (c *Config) archiveProblems(required bool) []string {
	switch strings.ToLower(c.Archive.Driver) {
	case "", "none":
		if required {
			return []string{"archive.driver must be sqlite or postgres"}
		}
		return nil
	case "sqlite", "postgres":
		if c.Archive.DatabaseURL == "" {
			return []string{"archive.database_url is required"}
		}
		return nil
	default:
		return []string{"archive.driver must be none, sqlite or postgres"}
	}
}

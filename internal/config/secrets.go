package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Redis.Password)

	// Copy slices so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Exchanges != nil {
		out.Exchanges = append([]string(nil), cfg.Exchanges...)
	}
	if cfg.Symbols != nil {
		out.Symbols = append([]string(nil), cfg.Symbols...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

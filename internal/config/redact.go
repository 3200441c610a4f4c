package config

const redacted = "***"

// Redacted returns a copy of cfg with secrets replaced, for logging the
// active configuration.
func (c Config) Redacted() Config {
	out := c
	redact(&out.Postgres.DSN)
	redact(&out.ClickHouse.DSN)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Keyring.Passphrase)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                 "production",
		Port:                "8080",
		JWTSecret:           "secure-secret-at-least-32-chars-long",
		DBDriver:            "postgres",
		DBPassword:          "secure-password",
		DBSSLMode:           "require",
		RedisURL:            "redis://localhost:6379",
		TracingSamplerRatio: 1,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(c *Config) {}, false},
		{"production with disabled SSL", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"prod with empty SSL", func(c *Config) { c.Env = "prod"; c.DBSSLMode = "" }, true},
		{"production default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"production short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"production weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"production sqlite", func(c *Config) { c.DBDriver = "sqlite"; c.SQLitePath = "x.db" }, true},
		{"production root bootstrap", func(c *Config) { c.DevBootstrapRoot = true }, true},
		{"development sqlite", func(c *Config) { c.Env = "development"; c.DBDriver = "sqlite"; c.SQLitePath = "dev.db" }, false},
		{"sqlite without path", func(c *Config) { c.Env = "development"; c.DBDriver = "sqlite" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"sampler ratio out of range", func(c *Config) { c.TracingSamplerRatio = 1.5 }, true},
		{"development short secret warns only", func(c *Config) { c.Env = "development"; c.JWTSecret = "dev"; c.DBSSLMode = "disable" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("EMAIL_DOMAIN", "@Rocky.gov")
	t.Setenv("CACHE_TTL_SECONDS", "15")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "rocky.gov", c.EmailDomain)
	assert.Equal(t, 15, c.CacheTTLSeconds)
	assert.Equal(t, "city-workflow-api", c.JWTIssuer)
}

func TestConfig_Origins(t *testing.T) {
	c := &Config{AllowedOrigins: " https://a.city.gov, ,https://b.city.gov "}
	assert.Equal(t, []string{"https://a.city.gov", "https://b.city.gov"}, c.Origins())
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfigDSN(t *testing.T) {
	t.Run("defaults sslmode to disable", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "resumeforge",
			User:     "billing",
			Password: "secret",
		}

		assert.Equal(t,
			"host=localhost port=5432 user=billing password=secret dbname=resumeforge sslmode=disable",
			cfg.DSN())
	})

	t.Run("carries configured sslmode", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "db.internal",
			Port:     5432,
			Name:     "resumeforge",
			User:     "billing",
			Password: "secret",
			SSLMode:  "verify-full",
		}

		assert.Contains(t, cfg.DSN(), "sslmode=verify-full")
	})
}

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := &Config{Host: "localhost", Port: "5432", Database: "cache", User: "app", SSLMode: "disable"}
	assert.NoError(t, valid.Validate())

	missing := []*Config{
		{Port: "5432", Database: "cache", User: "app"},
		{Host: "localhost", Port: "5432", User: "app"},
		{Host: "localhost", Port: "5432", Database: "cache"},
	}
	for _, c := range missing {
		assert.Error(t, c.Validate())
	}
}

func TestConfigConnString(t *testing.T) {
	c := &Config{Host: "db.internal", Port: "5433", Database: "cache", User: "app", Password: "s3cret", SSLMode: "require"}
	assert.Equal(t,
		"host=db.internal port=5433 dbname=cache user=app password=s3cret sslmode=require",
		c.ConnString())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)

	s, err := New(&Config{Host: "localhost", Port: "5432", Database: "cache", User: "app", SSLMode: "disable"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

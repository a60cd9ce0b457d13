package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	l := Map(map[string]string{
		"NAME":     "pgduck",
		"EMPTY":    "",
		"PORT":     " 5433 ",
		"BAD_PORT": "x",
		"FLAG":     "true",
		"TIMEOUT":  "15s",
		"EXTS":     "httpfs, iceberg,,",
		"SQLS":     "CREATE SECRET a (TYPE S3)||  ||SET threads=2",
	})

	assert.Equal(t, "pgduck", l.String("NAME", "def"))
	assert.Equal(t, "def", l.String("EMPTY", "def"))
	assert.Equal(t, "def", l.String("MISSING", "def"))

	port, err := l.Int("PORT", 1)
	require.NoError(t, err)
	assert.Equal(t, 5433, port)

	_, err = l.Int("BAD_PORT", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse BAD_PORT")

	flag, err := l.Bool("FLAG", false)
	require.NoError(t, err)
	assert.True(t, flag)

	d, err := l.Duration("TIMEOUT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)

	assert.Equal(t, []string{"httpfs", "iceberg"}, l.List("EXTS", ",", nil))
	assert.Equal(t, []string{"CREATE SECRET a (TYPE S3)", "SET threads=2"}, l.List("SQLS", "||", nil))
	assert.Equal(t, []string{"d"}, l.List("MISSING", ",", []string{"d"}))
}

func TestOS(t *testing.T) {
	t.Setenv("PGDUCK_ENV_TEST", "42")
	v, err := OS.Int("PGDUCK_ENV_TEST", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

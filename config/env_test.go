package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SIT_TEST_STR", "value")
	t.Setenv("SIT_TEST_BLANK", "   ")
	t.Setenv("SIT_TEST_INT", "42")
	t.Setenv("SIT_TEST_BAD_INT", "forty")
	t.Setenv("SIT_TEST_BOOL", "true")
	t.Setenv("SIT_TEST_DURATION", "1500ms")
	t.Setenv("SIT_TEST_LIST", "eng, deu,,fra ")

	assert.Equal(t, "value", getEnv("SIT_TEST_STR", "def"))
	assert.Equal(t, "def", getEnv("SIT_TEST_BLANK", "def"))
	assert.Equal(t, "def", getEnv("SIT_TEST_MISSING", "def"))

	assert.Equal(t, 42, getEnvInt("SIT_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("SIT_TEST_BAD_INT", 1))
	assert.Equal(t, int64(42), getEnvInt64("SIT_TEST_INT", 1))

	assert.True(t, getEnvBool("SIT_TEST_BOOL", false))
	assert.True(t, getEnvBool("SIT_TEST_MISSING", true))

	assert.Equal(t, 1500*time.Millisecond, getEnvDuration("SIT_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"eng", "deu", "fra"}, getEnvList("SIT_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("SIT_TEST_MISSING", []string{"x"}))
}

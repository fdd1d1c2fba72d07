package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	Env = map[string]string{"ACADEMYPAY_TEST_KEY": "from-file"}
	t.Cleanup(func() { Env = nil })
	t.Setenv("ACADEMYPAY_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("ACADEMYPAY_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("ACADEMYPAY_MISSING_KEY", "def"))
}

func TestGetIntAndSeconds(t *testing.T) {
	Env = map[string]string{"N": "12", "BAD": "x", "T": "3"}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, 12, GetInt("N", 1))
	assert.Equal(t, 1, GetInt("BAD", 1))
	assert.Equal(t, 7, GetInt("MISSING_N", 7))
	assert.Equal(t, 3*time.Second, GetSeconds("T", time.Minute))
	assert.Equal(t, time.Minute, GetSeconds("MISSING_T", time.Minute))
}

func TestGetList(t *testing.T) {
	Env = map[string]string{"IPS": " 10.0.0.1, ,192.168.0.0/24 "}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/24"}, GetList("IPS"))
	assert.Nil(t, GetList("NOPE"))
}

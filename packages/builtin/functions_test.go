package builtin

import (
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 12, 31, 10, 30, 0, 0, time.UTC)
}

func TestRegistry_Dates(t *testing.T) {
	r := NewRegistry(WithClock(fixedClock))

	tests := []struct {
		expr string
		want any
	}{
		{`date()`, "2024-12-31"},
		{`date("02.01.2006")`, "31.12.2024"},
		{`date("02.01.2006", -30)`, "01.12.2024"},
		{`date('02.01.2006', 1)`, "01.01.2025"},
		{`now()`, "2024-12-31T10:30:00Z"},
		{`now("15:04")`, "10:30"},
		{`timestamp()`, fixedClock().Unix()},
		{`timestampMs()`, fixedClock().UnixMilli()},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := r.Call(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Random(t *testing.T) {
	r := NewRegistry()

	v, err := r.Call("random(5, 7)")
	require.NoError(t, err)
	n := v.(int)
	assert.GreaterOrEqual(t, n, 5)
	assert.LessOrEqual(t, n, 7)

	s, err := r.Call("randomString(24)")
	require.NoError(t, err)
	assert.Len(t, s, 24)

	d, err := r.Call("randomDigits(6)")
	require.NoError(t, err)
	_, convErr := strconv.Atoi(d.(string))
	assert.NoError(t, convErr)

	id, err := r.Call("uuid()")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), id)
}

func TestRegistry_Env(t *testing.T) {
	t.Setenv("PAGESPEC_TEST_USER", "admin")
	r := NewRegistry()

	v, err := r.Call("env(PAGESPEC_TEST_USER)")
	require.NoError(t, err)
	assert.Equal(t, "admin", v)

	v, err = r.Call(`env(PAGESPEC_TEST_MISSING, "fallback")`)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call("nope()")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = r.Call("not a call")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = r.Call("random(a, 3)")
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = r.Call("random(9, 3)")
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = r.Call("env()")
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("greet", func(args []string) (any, error) {
		return "hello " + args[0], nil
	})

	v, err := r.Call(`greet("world")`)
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)
	assert.Contains(t, r.Names(), "greet")
	assert.True(t, IsCall("greet()"))
	assert.False(t, IsCall("greet"))
}

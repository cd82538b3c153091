package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgsGetters(t *testing.T) {
	a := Args{
		"s":    "hello",
		"i":    int64(7),
		"f":    2.5,
		"b":    true,
		"m":    map[string]any{"k": "v", "n": 1.0},
		"list": []any{"a", 2.0},
	}

	assert.Equal(t, "hello", a.String("s"))
	assert.Equal(t, "", a.String("i"))
	assert.Equal(t, 7, a.Int("i"))
	assert.Equal(t, 2, a.Int("f"))
	assert.Equal(t, 2.5, a.Float("f"))
	assert.Equal(t, 7.0, a.Float("i"))
	assert.True(t, a.Bool("b"))
	assert.False(t, a.Bool("missing"))
	assert.Equal(t, "v", a.Object("m").String("k"))
	assert.Equal(t, map[string]string{"k": "v", "n": "1"}, a.StringMap("m"))
	assert.Equal(t, []string{"a", "2"}, a.Strings("list"))
	assert.Nil(t, a.Strings("missing"))
	assert.True(t, a.Has("s"))
	assert.False(t, a.Has("nope"))
}

func TestResultBuilders(t *testing.T) {
	ok := Textf("%d rows", 2)
	assert.False(t, ok.IsError)
	assert.Equal(t, "2 rows", ok.Text())

	bad := ErrorResult(errors.New("boom"))
	assert.True(t, bad.IsError)
	assert.Equal(t, "boom", bad.Text())

	var nilResult *Result
	assert.Equal(t, "", nilResult.Text())
}

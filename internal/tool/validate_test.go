package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestSpec = Spec{
	Name: "send",
	Parameters: []Field{
		{Name: "url", Param: String{}, Required: true},
		{Name: "method", Param: Enum{Values: []string{"GET", "POST"}}, Default: "GET"},
		{Name: "retries", Param: Integer{}, Default: int64(0)},
		{Name: "ratio", Param: Number{}},
		{Name: "verbose", Param: Boolean{}, Default: false},
		{Name: "params", Param: Array{Items: Union{Of: []Param{String{}, Number{}, Boolean{}, Null{}}}}, Default: []any{}},
		{Name: "auth", Param: Object{Fields: []Field{
			{Name: "type", Param: Enum{Values: []string{"basic", "bearer"}}, Required: true},
			{Name: "token", Param: String{}},
		}}},
		{Name: "body", Param: Union{Of: []Param{String{}, Object{}}}},
	},
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		wantErr error
		field   string
		check   func(t *testing.T, got Args)
	}{
		{
			name: "defaults applied",
			args: map[string]any{"url": "http://x/y"},
			check: func(t *testing.T, got Args) {
				assert.Equal(t, "GET", got.String("method"))
				assert.Equal(t, int64(0), got["retries"])
				assert.Equal(t, false, got["verbose"])
				assert.Equal(t, []any{}, got["params"])
				assert.False(t, got.Has("ratio"))
				assert.False(t, got.Has("auth"))
			},
		},
		{
			name: "numbers normalized",
			args: map[string]any{"url": "u", "retries": float64(3), "ratio": 2},
			check: func(t *testing.T, got Args) {
				assert.Equal(t, int64(3), got["retries"])
				assert.Equal(t, float64(2), got["ratio"])
			},
		},
		{
			name: "extra fields pass through",
			args: map[string]any{"url": "u", "headers": map[string]any{"X-A": "1"}},
			check: func(t *testing.T, got Args) {
				assert.Equal(t, map[string]any{"X-A": "1"}, got.Map("headers"))
			},
		},
		{
			name: "nested object extras pass through",
			args: map[string]any{"url": "u", "auth": map[string]any{"type": "bearer", "token": "t", "extra": 1.0}},
			check: func(t *testing.T, got Args) {
				auth := got.Object("auth")
				assert.Equal(t, "bearer", auth.String("type"))
				assert.Equal(t, 1.0, auth["extra"])
			},
		},
		{
			name: "union picks matching option",
			args: map[string]any{"url": "u", "body": map[string]any{"k": "v"}},
			check: func(t *testing.T, got Args) {
				assert.Equal(t, map[string]any{"k": "v"}, got.Map("body"))
			},
		},
		{
			name: "null optional treated as absent",
			args: map[string]any{"url": "u", "method": nil},
			check: func(t *testing.T, got Args) {
				assert.Equal(t, "GET", got.String("method"))
			},
		},
		{
			name: "array of mixed params",
			args: map[string]any{"url": "u", "params": []any{"a", 1.0, true, nil}},
			check: func(t *testing.T, got Args) {
				assert.Len(t, got.Slice("params"), 4)
			},
		},
		{
			name:    "missing required",
			args:    map[string]any{},
			wantErr: ErrMissingParameter,
			field:   "url",
		},
		{
			name:    "null required",
			args:    map[string]any{"url": nil},
			wantErr: ErrTypeMismatch,
			field:   "url",
		},
		{
			name:    "wrong primitive",
			args:    map[string]any{"url": 42.0},
			wantErr: ErrTypeMismatch,
			field:   "url",
		},
		{
			name:    "fractional integer",
			args:    map[string]any{"url": "u", "retries": 1.5},
			wantErr: ErrTypeMismatch,
			field:   "retries",
		},
		{
			name:    "integer beyond int64",
			args:    map[string]any{"url": "u", "retries": 1e30},
			wantErr: ErrTypeMismatch,
			field:   "retries",
		},
		{
			name:    "integer at two to the 63",
			args:    map[string]any{"url": "u", "retries": 9223372036854775808.0},
			wantErr: ErrTypeMismatch,
			field:   "retries",
		},
		{
			name:    "negative integer beyond int64",
			args:    map[string]any{"url": "u", "retries": -1e19},
			wantErr: ErrTypeMismatch,
			field:   "retries",
		},
		{
			name: "large integer within int64",
			args: map[string]any{"url": "u", "retries": 1e18},
			check: func(t *testing.T, got Args) {
				assert.Equal(t, int64(1_000_000_000_000_000_000), got["retries"])
			},
		},
		{
			name:    "enum outside set",
			args:    map[string]any{"url": "u", "method": "DELETE"},
			wantErr: ErrInvalidEnum,
			field:   "method",
		},
		{
			name:    "nested missing",
			args:    map[string]any{"url": "u", "auth": map[string]any{}},
			wantErr: ErrMissingParameter,
			field:   "auth.type",
		},
		{
			name:    "array element mismatch",
			args:    map[string]any{"url": "u", "params": []any{"a", map[string]any{}}},
			wantErr: ErrTypeMismatch,
			field:   "params[1]",
		},
		{
			name:    "union mismatch",
			args:    map[string]any{"url": "u", "body": 5.0},
			wantErr: ErrTypeMismatch,
			field:   "body",
		},
		{
			name:    "array given object",
			args:    map[string]any{"url": "u", "params": map[string]any{}},
			wantErr: ErrTypeMismatch,
			field:   "params",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(requestSpec, tt.args)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Contains(t, err.Error(), tt.field)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	_, err := Validate(requestSpec, map[string]any{"method": "DELETE"})
	var missing *MissingParameterError
	require.True(t, errors.As(err, &missing), "url is declared first")
	assert.Equal(t, "url", missing.Field)
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"url": "u"}
	_, err := Validate(requestSpec, in)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": "u"}, in)
}

func TestValidateDefaultsAreCopies(t *testing.T) {
	first, err := Validate(requestSpec, map[string]any{"url": "u"})
	require.NoError(t, err)
	first["params"] = append(first.Slice("params"), "mutated")

	second, err := Validate(requestSpec, map[string]any{"url": "u"})
	require.NoError(t, err)
	assert.Empty(t, second.Slice("params"))
}

func TestTypeMismatchMessage(t *testing.T) {
	_, err := Validate(requestSpec, map[string]any{"url": true})
	require.Error(t, err)
	assert.Equal(t, "type mismatch for parameter url: expected string, got boolean", err.Error())
}

func TestInvalidEnumListsAllowed(t *testing.T) {
	_, err := Validate(requestSpec, map[string]any{"url": "u", "method": "PUT"})
	var enumErr *InvalidEnumError
	require.True(t, errors.As(err, &enumErr))
	assert.Equal(t, []string{"GET", "POST"}, enumErr.Allowed)
	assert.Contains(t, err.Error(), "GET, POST")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{&UnknownToolError{Name: "x"}, KindUnknownTool},
		{&MissingParameterError{Field: "x"}, KindMissingParameter},
		{&TypeMismatchError{Field: "x"}, KindTypeMismatch},
		{&InvalidEnumError{Field: "x"}, KindInvalidEnum},
		{&TimeoutError{Tool: "x"}, KindTimeout},
		{ErrShuttingDown, KindShuttingDown},
		{errors.New("connection refused"), KindExternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}

	assert.True(t, IsValidation(&TypeMismatchError{}))
	assert.False(t, IsValidation(&TimeoutError{}))
}

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "with op",
			err:      Validationf("wizard.preview", "sheet is required"),
			expected: "wizard.preview: sheet is required",
		},
		{
			name:     "without op",
			err:      &Error{Kind: KindBackend, Message: "boom"},
			expected: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Validationf("sql.execute", "empty"))

	assert.True(t, errors.Is(err, Validation))
	assert.False(t, errors.Is(err, Transport))
	assert.True(t, errors.Is(err, &Error{Kind: KindValidation, Op: "sql.execute"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindValidation, Op: "other"}))
}

func TestNewBackend_Fallback(t *testing.T) {
	assert.Equal(t, "import failed", NewBackend("op", "", "import failed").Message)
	assert.Equal(t, "no such sheet", NewBackend("op", "no such sheet", "import failed").Message)
}

func TestKindOfAndMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransport("api.GET /tables", 0, "connection refused", cause)

	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(cause))
	assert.Equal(t, "connection refused", Message(err))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "", Message(nil))
	assert.ErrorIs(t, err, cause)

	sec := AsSecondary("wizard.confirm", err)
	assert.Equal(t, KindSecondary, sec.Kind)
	assert.Equal(t, "connection refused", sec.Message)
}

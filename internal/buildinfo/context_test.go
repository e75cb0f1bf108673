package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{"nil context", nil, UnknownValue},
		{"empty version", &Context{BuildDate: "2024-05-01"}, UnknownValue},
		{"valid version", &Context{Version: "1.2.0"}, "1.2.0"},
		{"pre-release", &Context{Version: "1.2.0-rc.1"}, "1.2.0-rc.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContextBuildDateAndRelease(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, UnknownValue, nilCtx.GetBuildDate())
	assert.Equal(t, "wakefire@unknown", nilCtx.Release())

	c := &Context{Version: "0.3.1", BuildDate: "2024-05-01T10:00:00Z"}
	assert.Equal(t, "2024-05-01T10:00:00Z", c.GetBuildDate())
	assert.Equal(t, "wakefire@0.3.1", c.Release())
}

func TestValidationResult(t *testing.T) {
	t.Parallel()

	r := NewValidationResult()
	assert.True(t, r.Valid)
	assert.False(t, r.HasIssues())
	assert.Empty(t, r.Summary())

	r.AddWarning("gpio disabled")
	assert.True(t, r.Valid)
	assert.True(t, r.HasIssues())

	r.AddError("access key missing")
	r.AddError("poll interval must be positive")
	assert.False(t, r.Valid)
	assert.Equal(t, "2 configuration error(s): access key missing; poll interval must be positive", r.Summary())
}

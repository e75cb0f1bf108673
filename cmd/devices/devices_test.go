package devices

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakefire/wakefire/internal/audio"
	"github.com/wakefire/wakefire/internal/errors"
)

type staticLister struct {
	names []string
	err   error
}

func (l staticLister) ListDevices() ([]string, error) { return l.names, l.err }

func TestPrintDevices(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := printDevices(&out, staticLister{names: []string{
		"USB PnP Sound Device",
		"Monitor of Built-in Audio",
		"Loopback",
		"USB PnP Sound Device",
	}}, audio.NewDeviceFilter("Loopback"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "SOURCE")
	assert.Regexp(t, `^0\s+USB PnP Sound Device\s+yes$`, lines[1])
	assert.Regexp(t, `filtered$`, lines[2])
	assert.Regexp(t, `filtered$`, lines[3])
	assert.Regexp(t, `^3\s+USB PnP Sound Device\s+duplicate$`, lines[4])
}

func TestPrintDevicesListError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := printDevices(&out, staticLister{err: errors.NewStd("no backend")}, audio.NewDeviceFilter())
	require.Error(t, err)
	assert.Empty(t, out.String())
}

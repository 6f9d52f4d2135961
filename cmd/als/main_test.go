package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/als/cmd/als/console"
	"github.com/mklimuk/als/gpio"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	console.SetOutput(&out, &errOut)
	t.Cleanup(func() { console.SetOutput(io.Discard, io.Discard) })

	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"als"}, args...))
	return out.String(), errOut.String(), err
}

func TestInfoCmd(t *testing.T) {
	out, _, err := runApp(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "chip_name: Texas Instruments OPT300X")
	assert.Contains(t, out, "driver_version: 1000")
}

func TestShotCmd(t *testing.T) {
	out, errOut, err := runApp(t, "shot", "--adapter", "sim", "--times", "1", "--interval", "1ms")
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "1/1: 320.48 lux (raw 0x3fa6)")
}

func TestReadCmd(t *testing.T) {
	out, errOut, err := runApp(t, "read", "--adapter", "sim", "--sim-light", "1000", "--times", "2", "--interval", "1ms")
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "1/2: 1000.00 lux (raw 0x5c35)")
	assert.Contains(t, out, "2/2: 1000.00 lux (raw 0x5c35)")
}

func TestReadCmd_OPT3002(t *testing.T) {
	out, _, err := runApp(t, "read", "--adapter", "sim", "--type", "OPT3002", "--sim-light", "1.2", "--times", "1", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "1/1: 1.20 nW/cm2 (raw 0x0001)")
}

func TestInterruptCmd(t *testing.T) {
	out, _, err := runApp(t, "interrupt", "--adapter", "sim", "--times", "2", "--poll", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "irq high limit")
	assert.Contains(t, out, "1/2: 320.48 lux")
	assert.Contains(t, out, "2/2: 320.48 lux")
	assert.NotContains(t, out, "irq low limit")
}

func TestInterruptCmd_InvalidPolarity(t *testing.T) {
	_, _, err := runApp(t, "interrupt", "--adapter", "sim", "--polarity", "sideways")
	assert.ErrorContains(t, err, "unknown polarity")
}

func TestConfigShowCmd(t *testing.T) {
	out, _, err := runApp(t, "config", "show", "--adapter", "sim")
	require.NoError(t, err)
	assert.Contains(t, out, "raw: \"0xc810\"")
	assert.Contains(t, out, "mode: shutdown")
	assert.Contains(t, out, "latch: true")
}

func TestRegCmd(t *testing.T) {
	out, _, err := runApp(t, "reg", "get", "--adapter", "sim", "device")
	require.NoError(t, err)
	assert.Contains(t, out, "0x7f: 0x3001")

	out, _, err = runApp(t, "reg", "set", "--yes", "--adapter", "sim", "high", "0x1234")
	require.NoError(t, err)
	assert.Contains(t, out, "0x03: 0x1234")

	_, _, err = runApp(t, "reg", "get", "--adapter", "sim", "nowhere")
	assert.ErrorContains(t, err, "unknown register")
}

func TestSelftestCmd(t *testing.T) {
	for _, variant := range []string{"OPT3001", "OPT3002", "OPT3005"} {
		t.Run(variant, func(t *testing.T) {
			out, errOut, err := runApp(t, "selftest", "--adapter", "sim", "--type", variant)
			require.NoError(t, err)
			assert.Empty(t, errOut)
			assert.Contains(t, out, "range auto")
			assert.Contains(t, out, "fault count 8")
		})
	}
}

func TestUnknownAdapter(t *testing.T) {
	_, _, err := runApp(t, "shot", "--adapter", "carrier-pigeon")
	assert.ErrorContains(t, err, "unknown adapter")
}

func TestDeviceFlags(t *testing.T) {
	out, _, err := runApp(t, "shot", "--adapter", "sim", "--addr", "VCC", "--times", "1", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "1/1: 320.48 lux")

	_, _, err = runApp(t, "shot", "--adapter", "sim", "--addr", "FLOAT")
	assert.ErrorContains(t, err, "unknown address pin")

	_, _, err = runApp(t, "shot", "--adapter", "sim", "--type", "OPT3009")
	assert.ErrorContains(t, err, "unknown variant")
}

func TestParseRegister(t *testing.T) {
	tests := []struct {
		in  string
		reg byte
		ok  bool
	}{
		{"config", 0x01, true},
		{"HIGH", 0x03, true},
		{"0x7e", 0x7E, true},
		{"2", 0x02, true},
		{"0x100", 0, false},
		{"limits", 0, false},
	}
	for _, test := range tests {
		reg, err := parseRegister(test.in)
		if !test.ok {
			assert.Error(t, err, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.reg, reg, test.in)
	}
}

func TestBusNumber(t *testing.T) {
	tests := []struct {
		in string
		nr int
		ok bool
	}{
		{"", -1, true},
		{"2", 2, true},
		{"i2c-0", 0, true},
		{"/dev/i2c-1", 1, true},
		{"/dev/i2c", 0, false},
	}
	for _, test := range tests {
		nr, err := busNumber(test.in)
		if !test.ok {
			assert.Error(t, err, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.nr, nr, test.in)
	}
}

func TestExpanderPin(t *testing.T) {
	port, nr, err := expanderPin("B3")
	require.NoError(t, err)
	assert.Equal(t, gpio.PortB, port)
	assert.Equal(t, 3, nr)

	port, nr, err = expanderPin("a7")
	require.NoError(t, err)
	assert.Equal(t, gpio.PortA, port)
	assert.Equal(t, 7, nr)

	for _, bad := range []string{"C1", "A8", "A", "A10"} {
		_, _, err = expanderPin(bad)
		assert.Error(t, err, bad)
	}
}

package gpio

import (
	"context"
	"fmt"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// HostLine is a GPIO of the host board, e.g. "GPIO17" on a Raspberry Pi.
type HostLine struct {
	pin pgpio.PinIn
}

// OpenHostLine looks the pin up by name and configures it as an input with
// a pull-up, edge detection is enabled for the given active level.
func OpenHostLine(name string, active ActiveLevel) (*HostLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no gpio named %q", name)
	}
	return NewHostLine(pin, active)
}

func NewHostLine(pin pgpio.PinIn, active ActiveLevel) (*HostLine, error) {
	edge := pgpio.FallingEdge
	if active == ActiveHigh {
		edge = pgpio.RisingEdge
	}
	err := pin.In(pgpio.PullUp, edge)
	if err != nil {
		return nil, fmt.Errorf("could not configure %s as input: %w", pin, err)
	}
	return &HostLine{pin: pin}, nil
}

func (l *HostLine) Level(ctx context.Context) (bool, error) {
	return l.pin.Read() == pgpio.High, nil
}

// WaitForEdge blocks until the configured edge is seen or timeout elapses.
func (l *HostLine) WaitForEdge(timeout time.Duration) bool {
	return l.pin.WaitForEdge(timeout)
}

// Package gpio provides the digital inputs an ambient light sensor interrupt
// pin can be wired to: a GP pin of the MCP2221 bridge, a pin of an MCP23017
// expander or a host GPIO reached through periph.
package gpio

import (
	"context"
	"fmt"
	"time"
)

// Line is a digital input. Level reports true for a high level.
type Line interface {
	Level(ctx context.Context) (bool, error)
}

// ActiveLevel is the level at which a line signals an interrupt.
type ActiveLevel bool

const (
	ActiveLow  ActiveLevel = false
	ActiveHigh ActiveLevel = true
)

func (a ActiveLevel) String() string {
	if a == ActiveHigh {
		return "active high"
	}
	return "active low"
}

// WaitAsserted polls line every interval until it reads active or ctx is done.
func WaitAsserted(ctx context.Context, line Line, active ActiveLevel, interval time.Duration) error {
	return waitLevel(ctx, line, bool(active), interval)
}

// Watch calls handler once per assertion of line until ctx is done or handler
// fails. After each call it waits for the line to go inactive again.
func Watch(ctx context.Context, line Line, active ActiveLevel, interval time.Duration, handler func(ctx context.Context) error) error {
	for {
		err := waitLevel(ctx, line, bool(active), interval)
		if err != nil {
			return err
		}
		err = handler(ctx)
		if err != nil {
			return err
		}
		err = waitLevel(ctx, line, !bool(active), interval)
		if err != nil {
			return err
		}
	}
}

func waitLevel(ctx context.Context, line Line, level bool, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		got, err := line.Level(ctx)
		if err != nil {
			return fmt.Errorf("could not read interrupt line: %w", err)
		}
		if got == level {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PinReader reads single pins of a GPIO capable bridge.
type PinReader interface {
	ReadGPIOPin(ctx context.Context, pin int) (bool, error)
}

// BridgeLine is a pin of a USB bridge, e.g. GP1 of an MCP2221.
type BridgeLine struct {
	reader PinReader
	pin    int
}

func NewBridgeLine(reader PinReader, pin int) *BridgeLine {
	return &BridgeLine{reader: reader, pin: pin}
}

func (l *BridgeLine) Level(ctx context.Context) (bool, error) {
	return l.reader.ReadGPIOPin(ctx, l.pin)
}

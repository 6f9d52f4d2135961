package als

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WordBus exposes 16-bit big-endian register access on top of an I2CBus.
// Register reads set the register pointer first and then read two bytes,
// register writes send the pointer followed by MSB and LSB.
type WordBus struct {
	bus I2CBus
	buf []byte
}

func NewWordBus(bus I2CBus) *WordBus {
	return &WordBus{bus: bus, buf: make([]byte, 2)}
}

// Open acquires the underlying bus if it needs it.
func (w *WordBus) Open(ctx context.Context) error {
	if w.bus == nil {
		return fmt.Errorf("no bus configured")
	}
	opener, ok := w.bus.(Opener)
	if !ok {
		return nil
	}
	err := opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("could not open bus: %w", err)
	}
	return nil
}

// Close releases the bus and closes it if it is closable.
func (w *WordBus) Close(ctx context.Context) error {
	if w.bus == nil {
		return fmt.Errorf("no bus configured")
	}
	err := w.bus.Release(ctx)
	if closer, ok := w.bus.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	if err != nil {
		return fmt.Errorf("could not close bus: %w", err)
	}
	return nil
}

func (w *WordBus) ReadRegister(ctx context.Context, address byte, reg byte) (uint16, error) {
	clear(w.buf)
	if tx, ok := w.bus.(Transceiver); ok {
		err := tx.TxAddr(ctx, address, []byte{reg}, w.buf)
		if err != nil {
			return 0, fmt.Errorf("could not read register %#02x: %w", reg, err)
		}
		return binary.BigEndian.Uint16(w.buf), nil
	}
	err := w.bus.WriteToAddr(ctx, address, []byte{reg})
	if err != nil {
		return 0, fmt.Errorf("could not set register pointer %#02x: %w", reg, err)
	}
	err = w.bus.ReadFromAddr(ctx, address, w.buf)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#02x: %w", reg, err)
	}
	return binary.BigEndian.Uint16(w.buf), nil
}

func (w *WordBus) WriteRegister(ctx context.Context, address byte, reg byte, value uint16) error {
	frame := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(frame[1:], value)
	err := w.bus.WriteToAddr(ctx, address, frame)
	if err != nil {
		return fmt.Errorf("could not write register %#02x: %w", reg, err)
	}
	return nil
}

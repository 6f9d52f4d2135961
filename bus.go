package als

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Opener is implemented by buses that need to acquire the underlying device
// before the first transfer.
type Opener interface {
	Open(ctx context.Context) error
}

// Transceiver is implemented by buses able to write a register pointer and
// read the answer in a single transaction (repeated start).
type Transceiver interface {
	TxAddr(ctx context.Context, address byte, w, r []byte) error
}

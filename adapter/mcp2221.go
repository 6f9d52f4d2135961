package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/als"
	"github.com/mklimuk/als/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")
var ErrNotFound = errors.New("MCP2221 device not found")
var ErrAmbiguous = errors.New("ambiguous device identification")

const reportSize = 64

const (
	cmdStatus         = 0x10
	cmdGetReadData    = 0x40
	cmdGetGPIO        = 0x51
	cmdWriteData      = 0x90
	cmdReadData       = 0x91
	cmdReadRepeated   = 0x93
	cmdWriteNoStop    = 0x94
	cmdReadFlash      = 0xB0
	cmdWriteFlash     = 0xB1
	flashGPIOSettings = 0x01
)

const (
	statusCancelTransfer = 0x10
	statusSetSpeed       = 0x20
	statusSpeedRejected  = 0x21
	clockFrequency       = 12_000_000
)

// hidDevice is the part of *hid.Device used by the adapter.
type hidDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

var _ als.I2CBus = &MCP2221{}
var _ als.Transceiver = &MCP2221{}

// MCP2221 is a USB to I2C bridge. The HID device is held open between Open
// and Close, commands issued outside of that window open it for one exchange.
type MCP2221 struct {
	mx           sync.Mutex
	index        int
	open         func(index int) (hidDevice, error)
	dev          hidDevice
	request      []byte
	response     []byte
	responseWait time.Duration
	log          *slog.Logger
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type GPIOMode byte

const (
	GPIOModeOut         GPIOMode = 0b00000000
	GPIOModeIn          GPIOMode = 0b00001000
	GPIOModeNoOperation GPIOMode = 0xEF
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOModeIn:
		return "INPUT"
	case GPIOModeOut:
		return "OUTPUT"
	default:
		return "NOOP"
	}
}

type GPIODesignation byte

const (
	GPIOOperation GPIODesignation = 0b00000000
	// alternate function of GP1, used to latch the interrupt line of a sensor
	GPIO1InterruptDetection GPIODesignation = 0b00000100
)

const gpioModeMask = 0b00001000
const gpioOperationMask = 0b00000111

// GPIOCount is the number of general purpose pins of the bridge.
const GPIOCount = 4

type MCP2221GPIOValues struct {
	Mode  [GPIOCount]GPIOMode `yaml:"mode"`
	Value [GPIOCount]byte     `yaml:"value"`
}

type MCP2221GPIOParameters struct {
	Mode        [GPIOCount]GPIOMode        `yaml:"mode"`
	Designation [GPIOCount]GPIODesignation `yaml:"designation"`
}

type Opt func(*MCP2221)

// WithIndex selects one of several attached bridges by enumeration order.
func WithIndex(index int) Opt {
	return func(d *MCP2221) {
		d.index = index
	}
}

func WithResponseWait(wait time.Duration) Opt {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func WithLogger(log *slog.Logger) Opt {
	return func(d *MCP2221) {
		if log != nil {
			d.log = log
		}
	}
}

func NewMCP2221(opts ...Opt) *MCP2221 {
	d := &MCP2221{
		index:        -1,
		open:         openHID,
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func openHID(index int) (hidDevice, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, ErrNotFound
	}
	if index < 0 {
		if len(devs) > 1 {
			return nil, ErrAmbiguous
		}
		index = 0
	}
	if index >= len(devs) {
		return nil, fmt.Errorf("no device with index %d: %w", index, ErrNotFound)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

// Open acquires the bridge and checks that it answers status requests.
func (d *MCP2221) Open(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev != nil {
		return nil
	}
	dev, err := d.open(d.index)
	if err != nil {
		return err
	}
	d.dev = dev
	d.resetBuffers()
	d.request[0] = cmdStatus
	err = d.send(ctx)
	if err != nil {
		_ = d.closeDevice()
		return fmt.Errorf("adapter does not answer: %w", err)
	}
	status := bufferToStatus(d.response)
	d.log.Debug("mcp2221 opened", "divider", status.I2CSpeedDivider, "address", status.CurrentAddress)
	return nil
}

func (d *MCP2221) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.closeDevice()
}

func (d *MCP2221) closeDevice() error {
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	if err != nil {
		return fmt.Errorf("could not close device: %w", err)
	}
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, cmdWriteData, address, buffer)
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.read(ctx, cmdReadData, address, buffer)
}

// TxAddr writes w without a stop condition and reads r after a repeated start.
func (d *MCP2221) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.write(ctx, cmdWriteNoStop, address, w)
	if err != nil {
		return err
	}
	return d.read(ctx, cmdReadRepeated, address, r)
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		d.log.Debug("adapter busy", "address", address)
		return als.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		d.log.Debug("adapter busy", "address", address)
		return als.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetReadData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

// SetSpeed sets the I2C clock in Hz. The bridge derives it from a 12MHz
// clock, so only rates between about 47kHz and 400kHz can be selected.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) error {
	if hz <= 0 {
		return fmt.Errorf("invalid bus speed %d", hz)
	}
	divider := clockFrequency/hz - 3
	if divider < 1 || divider > 0xFF {
		return fmt.Errorf("bus speed %d out of range", hz)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = statusSetSpeed
	d.request[4] = byte(divider)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("set speed request failed: %w", err)
	}
	if d.response[3] == statusSpeedRejected {
		return fmt.Errorf("speed not accepted (transfer in progress): %w", ErrCommandFailed)
	}
	return nil
}

func (d *MCP2221) SetGPIOParameters(ctx context.Context, params MCP2221GPIOParameters) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdWriteFlash
	d.request[1] = flashGPIOSettings
	for i := range GPIOCount {
		d.request[2+i] = byte(params.Designation[i]) | byte(params.Mode[i])
	}
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("set GP parameters command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return ErrCommandFailed
	}
	return nil
}

func (d *MCP2221) GetGPIOParameters(ctx context.Context) (MCP2221GPIOParameters, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdReadFlash
	d.request[1] = flashGPIOSettings
	var res MCP2221GPIOParameters
	err := d.send(ctx)
	if err != nil {
		return res, fmt.Errorf("get GP parameters command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return res, ErrCommandUnsupported
	}
	for i := range GPIOCount {
		res.Mode[i] = GPIOMode(d.response[4+i] & gpioModeMask)
		res.Designation[i] = GPIODesignation(d.response[4+i] & gpioOperationMask)
	}
	return res, nil
}

func (d *MCP2221) ReadGPIO(ctx context.Context) (MCP2221GPIOValues, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.readGPIO(ctx)
}

func (d *MCP2221) readGPIO(ctx context.Context) (MCP2221GPIOValues, error) {
	d.resetBuffers()
	d.request[0] = cmdGetGPIO
	var res MCP2221GPIOValues
	err := d.send(ctx)
	if err != nil {
		return res, fmt.Errorf("read GPIO values command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return res, ErrCommandFailed
	}
	for i := range GPIOCount {
		res.Value[i] = d.response[2+2*i]
		res.Mode[i] = GPIOModeNoOperation
		if dir := d.response[3+2*i]; dir != byte(GPIOModeNoOperation) {
			res.Mode[i] = GPIOMode(dir << 3)
		}
	}
	return res, nil
}

// ReadGPIOPin returns the logic level of one GP pin configured as GPIO.
func (d *MCP2221) ReadGPIOPin(ctx context.Context, pin int) (bool, error) {
	if pin < 0 || pin >= GPIOCount {
		return false, fmt.Errorf("invalid pin GP%d", pin)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	res, err := d.readGPIO(ctx)
	if err != nil {
		return false, err
	}
	if res.Mode[pin] == GPIOModeNoOperation {
		return false, fmt.Errorf("pin GP%d is not a GPIO: %w", pin, ErrCommandUnsupported)
	}
	return res.Value[pin] != 0, nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels the current I2C transfer so a stuck bus becomes usable.
func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancelTransfer
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// send writes the request report and reads the response report. Callers hold mx.
func (d *MCP2221) send(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev := d.dev
	if dev == nil {
		var err error
		dev, err = d.open(d.index)
		if err != nil {
			return err
		}
		defer func() {
			if err := dev.Close(); err != nil {
				d.log.Warn("could not close adapter", "error", err)
			}
		}()
	}
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		d.log.Debug("sending message to adapter", "report", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		time.Sleep(d.responseWait)
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		d.log.Debug("read message from adapter", "report", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

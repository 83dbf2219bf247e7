package motion

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// PinLevel is the logical state of a GPIO pin.
type PinLevel bool

const (
	PinLow  PinLevel = false
	PinHigh PinLevel = true
)

// PinDriver abstracts the GPIO lines a stepper driver board hangs off,
// so rigs can run against real pins or a mock during development.
type PinDriver interface {
	SetupOutput(pin int) error
	Write(pin int, level PinLevel) error
	Close() error
}

// NewPinDriver returns a mock driver when mock is true, otherwise the
// memory-mapped Raspberry Pi driver.
func NewPinDriver(mock bool) (PinDriver, error) {
	if mock {
		return NewMockPinDriver(), nil
	}
	return NewRPiPinDriver()
}

// RPiPinDriver drives real pins through go-rpio. Requires access to
// /dev/gpiomem or root.
type RPiPinDriver struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// NewRPiPinDriver memory-maps the GPIO registers.
func NewRPiPinDriver() (*RPiPinDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}
	return &RPiPinDriver{pins: make(map[int]rpio.Pin)}, nil
}

func (d *RPiPinDriver) SetupOutput(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := rpio.Pin(pin)
	p.Output()
	d.pins[pin] = p
	return nil
}

func (d *RPiPinDriver) Write(pin int, level PinLevel) error {
	d.mu.Lock()
	p, ok := d.pins[pin]
	if !ok {
		p = rpio.Pin(pin)
		p.Output()
		d.pins[pin] = p
	}
	d.mu.Unlock()

	if level == PinHigh {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

// Close resets all configured pins to input as a safe state and unmaps
// the registers.
func (d *RPiPinDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pins {
		p.Input()
	}
	return rpio.Close()
}

// MockPinDriver records pin writes in memory. Used on development
// machines and in tests.
type MockPinDriver struct {
	mu     sync.Mutex
	levels map[int]PinLevel
	writes []PinWrite
}

// PinWrite is one recorded Write call.
type PinWrite struct {
	Pin   int
	Level PinLevel
}

func NewMockPinDriver() *MockPinDriver {
	return &MockPinDriver{levels: make(map[int]PinLevel)}
}

func (d *MockPinDriver) SetupOutput(pin int) error {
	return nil
}

func (d *MockPinDriver) Write(pin int, level PinLevel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.levels[pin] = level
	d.writes = append(d.writes, PinWrite{Pin: pin, Level: level})
	return nil
}

func (d *MockPinDriver) Close() error {
	return nil
}

// Level reports the last written level of a pin.
func (d *MockPinDriver) Level(pin int) PinLevel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[pin]
}

// Writes returns a copy of the recorded write sequence.
func (d *MockPinDriver) Writes() []PinWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PinWrite(nil), d.writes...)
}

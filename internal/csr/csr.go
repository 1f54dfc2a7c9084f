// Package csr models the configuration register space as an explicit handle.
//
// Registers are 32-bit little-endian words addressed by byte offset. A Handle is
// acquired with Open and must be released with Close; With scopes the handle to a
// callback and always releases it.
package csr

import (
	"sync"

	"github.com/yanun0323/errors"

	"tob/pkg/exception"
)

// Register offsets.
const (
	PriceBandBps  uint32 = 0x008
	TokenRate     uint32 = 0x00C
	PositionLimit uint32 = 0x010
	Kill          uint32 = 0x01C
	SymtabIndex   uint32 = 0x020
	SymtabLo      uint32 = 0x024
	SymtabHi      uint32 = 0x028
	SymtabEnable  uint32 = 0x02C
	SymtabCommit  uint32 = 0x040
)

// Size is the register window in bytes.
const Size = 0x1000

// Device is a raw register window.
type Device interface {
	ReadReg(off uint32) (uint32, error)
	WriteReg(off, v uint32) error
	Close() error
}

// Opener acquires a device.
type Opener func() (Device, error)

// Handle serializes access to a device and validates offsets.
type Handle struct {
	mu     sync.Mutex
	dev    Device
	closed bool
}

// Open acquires a handle from the opener.
func Open(open Opener) (*Handle, error) {
	if open == nil {
		return nil, exception.ErrNilInstance
	}
	dev, err := open()
	if err != nil {
		return nil, errors.Wrap(err, "open register device")
	}
	if dev == nil {
		return nil, exception.ErrNilInstance
	}
	return &Handle{dev: dev}, nil
}

// With opens a handle, runs fn and closes the handle whatever fn returns.
func With(open Opener, fn func(h *Handle) error) (err error) {
	h, err := Open(open)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := h.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(h)
}

func (h *Handle) Read(off uint32) (uint32, error) {
	if err := checkOffset(off); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, exception.ErrDeviceClosed
	}
	return h.dev.ReadReg(off)
}

func (h *Handle) Write(off, v uint32) error {
	if err := checkOffset(off); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return exception.ErrDeviceClosed
	}
	return h.dev.WriteReg(off, v)
}

// Close releases the device. Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.dev.Close()
}

// WriteSymbol loads one symbol table tuple: index, packed name, enable pulse.
func (h *Handle) WriteSymbol(index uint16, packed uint64) error {
	steps := [...]struct{ off, v uint32 }{
		{SymtabIndex, uint32(index)},
		{SymtabLo, uint32(packed)},
		{SymtabHi, uint32(packed >> 32)},
		{SymtabEnable, 1},
		{SymtabEnable, 0},
	}
	for _, s := range steps {
		if err := h.Write(s.off, s.v); err != nil {
			return errors.Wrapf(err, "write symbol %d", index)
		}
	}
	return nil
}

// CommitSymbols publishes the staged symbol table.
func (h *Handle) CommitSymbols() error {
	return h.Write(SymtabCommit, 1)
}

func checkOffset(off uint32) error {
	if off%4 != 0 {
		return exception.ErrRegisterUnaligned
	}
	if off >= Size {
		return exception.ErrRegisterRange
	}
	return nil
}

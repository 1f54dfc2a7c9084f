package csr

import (
	"sync"

	"tob/pkg/exception"
)

// SymbolSink receives symbol table tuples from the register load path.
type SymbolSink interface {
	Stage(index uint16, packed uint64) error
	Commit() error
}

// Memory is an in-process register file. A rising edge on SymtabEnable stages
// the current (index, lo, hi) tuple into the sink; a non-zero write to
// SymtabCommit commits it.
type Memory struct {
	mu     sync.Mutex
	regs   [Size / 4]uint32
	sink   SymbolSink
	closed bool
}

func NewMemory(sink SymbolSink) *Memory {
	return &Memory{sink: sink}
}

// Opener returns an opener that hands out this device.
func (m *Memory) Opener() Opener {
	return func() (Device, error) {
		m.mu.Lock()
		m.closed = false
		m.mu.Unlock()
		return m, nil
	}
}

func (m *Memory) ReadReg(off uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, exception.ErrDeviceClosed
	}
	return m.regs[off/4], nil
}

func (m *Memory) WriteReg(off, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return exception.ErrDeviceClosed
	}

	prev := m.regs[off/4]
	m.regs[off/4] = v

	if m.sink == nil {
		return nil
	}
	switch off {
	case SymtabEnable:
		if prev&1 == 0 && v&1 == 1 {
			packed := uint64(m.regs[SymtabHi/4])<<32 | uint64(m.regs[SymtabLo/4])
			return m.sink.Stage(uint16(m.regs[SymtabIndex/4]), packed)
		}
	case SymtabCommit:
		if v != 0 {
			m.regs[off/4] = 0
			return m.sink.Commit()
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

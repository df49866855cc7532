/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

// Package machine is the simulated platform: processors, the primary and
// flat vector dispatch tables, a line-masking interrupt controller and
// interrupt delivery into the kernel's dispatch runtime.
package machine

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/osterlund/virtualint/kernel/hal"
	"github.com/osterlund/virtualint/kernel/interrupt"
	"github.com/osterlund/virtualint/kernel/irql"
	"github.com/osterlund/virtualint/machine/pic"
)

// Flat dispatch vectors share one unexpected-interrupt stub at the second
// level.
const flatNoDispatchAddr hal.Address = 0x80003000

type Config struct {
	Processors int
	Vectors    int // primary table size

	// PIC lines back vectors [LineBase, LineBase+lines). Vectors outside
	// the range cannot be enabled.
	LineBase int
	Lines    int

	// Vectors in [FlatBase, FlatBase+FlatVectors) route through the flat
	// dispatch table.
	FlatBase    int
	FlatVectors int

	// NoCycleCounter simulates a host without a usable cycle counter,
	// which disables ISR timing.
	NoCycleCounter bool
}

func (c *Config) sanitize() {
	if c.Processors <= 0 {
		c.Processors = 1
	}
	if c.Vectors <= 0 {
		c.Vectors = 0x100
	}
	if c.Lines <= 0 {
		c.Lines = 16
	}
}

// TSC is the default cycle counter, one cycle per wall-clock nanosecond.
type TSC struct{}

func (TSC) Cycles() uint64 {
	return uint64(time.Now().UnixNano())
}

type Machine struct {
	cfg    Config
	sys    *irql.System
	kernel *interrupt.Kernel
	pic    *pic.Device

	table []hal.Target
	flat  []hal.Slot

	sweeps     uint64
	unexpected uint64
}

func New(cfg Config) *Machine {
	cfg.sanitize()

	var tsc irql.CycleCounter
	if !cfg.NoCycleCounter {
		tsc = TSC{}
	}

	m := &Machine{
		cfg:   cfg,
		sys:   irql.NewSystem(cfg.Processors, tsc),
		pic:   pic.New(cfg.Lines),
		table: make([]hal.Target, cfg.Vectors),
		flat:  make([]hal.Slot, cfg.FlatVectors),
	}
	for i := range m.table {
		m.table[i] = interrupt.UnexpectedStub(i)
	}
	for i := range m.flat {
		m.flat[i].Target = hal.Stub(flatNoDispatchAddr)
	}

	m.kernel = interrupt.NewKernel(m, m.sys)
	return m
}

func (m *Machine) Kernel() *interrupt.Kernel {
	return m.kernel
}

func (m *Machine) System() *irql.System {
	return m.sys
}

func (m *Machine) NumProcessors() int {
	return m.cfg.Processors
}

func (m *Machine) Vectors() int {
	return m.cfg.Vectors
}

// Sweeps returns the number of cache synchronization sweeps performed.
func (m *Machine) Sweeps() uint64 {
	return atomic.LoadUint64(&m.sweeps)
}

// Unexpected returns the number of deliveries that hit an
// unexpected-interrupt stub.
func (m *Machine) Unexpected() uint64 {
	return atomic.LoadUint64(&m.unexpected)
}

func (m *Machine) isFlat(vector int) bool {
	return m.cfg.FlatVectors > 0 && vector >= m.cfg.FlatBase && vector < m.cfg.FlatBase+m.cfg.FlatVectors
}

func (m *Machine) line(vector int) int {
	return vector - m.cfg.LineBase
}

// LineEnabled reports whether the PIC line behind a vector is unmasked.
func (m *Machine) LineEnabled(vector int) bool {
	return m.pic.Enabled(m.line(vector))
}

func (m *Machine) EnableLine(vector int, level irql.Level, mode hal.Mode) bool {
	return m.pic.Enable(m.line(vector))
}

func (m *Machine) DisableLine(vector int, level irql.Level) {
	m.pic.Disable(m.line(vector))
}

func (m *Machine) DispatchSlot(vector int) hal.SlotInfo {
	if m.isFlat(vector) {
		return hal.SlotInfo{
			Kind:       hal.FlatDispatch,
			NoDispatch: flatNoDispatchAddr,
			Flat:       &m.flat[vector-m.cfg.FlatBase],
		}
	}
	return hal.SlotInfo{Kind: hal.DirectDispatch}
}

func (m *Machine) VectorToIndex(vector int) int {
	return vector
}

func (m *Machine) TableTarget(index int) hal.Target {
	return m.table[index]
}

func (m *Machine) SetTableTarget(index int, t hal.Target) {
	m.table[index] = t
}

func (m *Machine) SweepCache() {
	atomic.AddUint64(&m.sweeps, 1)
}

// Interrupt delivers a hardware interrupt on the given processor. Masked
// lines record the assertion and drop the delivery; deliveries into an
// unexpected-interrupt stub are counted and dropped. It reports whether a
// service routine ran.
//
// The processor's execution slot serializes delivery against connect and
// disconnect on the owning processor, which is exactly why those pin
// themselves there.
func (m *Machine) Interrupt(processor, vector int) bool {
	if vector < 0 || vector >= m.cfg.Vectors {
		return false
	}

	if line := m.line(vector); line >= 0 && line < m.pic.Lines() {
		m.pic.IRQ(line)
		if !m.pic.Enabled(line) {
			return false
		}

		// Next may pick an earlier pending assertion on a lower line;
		// retire whichever line it moved into service.
		next, err := m.pic.Next()
		if err != nil {
			return false
		}
		defer m.pic.EOI(next)
	}

	cpu, revert := m.sys.PinTo(processor)
	defer revert()

	var target hal.Target
	if m.isFlat(vector) {
		target = m.flat[vector-m.cfg.FlatBase].Target
	} else {
		target = m.table[vector]
	}

	if entry, ok := target.(interrupt.Entry); ok {
		entry.Invoke(cpu)
		return true
	}

	atomic.AddUint64(&m.unexpected, 1)
	log.Printf("machine: unexpected interrupt on vector %#x", vector)
	return false
}

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

// Package pic models the line masking side of a programmable interrupt
// controller in the spirit of the Intel 8259 pair: a mask register, a
// request register for asserted lines and a service register for lines
// currently being dispatched.
package pic

import "errors"

var ErrNoInterrupts = errors.New("no interrupts")

type Device struct {
	maskReg, requestReg, serviceReg uint64
	lines                           int
}

// New creates a controller with the given number of lines, all masked.
func New(lines int) *Device {
	if lines > 64 {
		lines = 64
	}
	return &Device{maskReg: ^uint64(0), lines: lines}
}

func (m *Device) Name() string {
	return "Programmable Interrupt Controller"
}

func (m *Device) Reset() {
	*m = Device{maskReg: ^uint64(0), lines: m.lines}
}

func (m *Device) Lines() int {
	return m.lines
}

// Enable unmasks a line. It reports false for lines the controller does
// not have.
func (m *Device) Enable(line int) bool {
	if line < 0 || line >= m.lines {
		return false
	}
	m.maskReg &^= 1 << uint(line)
	return true
}

func (m *Device) Disable(line int) {
	if line >= 0 && line < m.lines {
		m.maskReg |= 1 << uint(line)
	}
}

func (m *Device) Enabled(line int) bool {
	if line < 0 || line >= m.lines {
		return false
	}
	return m.maskReg&(1<<uint(line)) == 0
}

// IRQ asserts a line. Masked assertions are recorded but not deliverable.
func (m *Device) IRQ(line int) {
	if line >= 0 && line < m.lines {
		m.requestReg |= 1 << uint(line)
	}
}

// Next moves the lowest asserted unmasked line from request to service
// and returns it, or ErrNoInterrupts.
func (m *Device) Next() (int, error) {
	has := m.requestReg &^ m.maskReg
	if has == 0 {
		return 0, ErrNoInterrupts
	}
	for i := 0; i < m.lines; i++ {
		if has>>uint(i)&1 != 0 {
			m.requestReg &^= 1 << uint(i)
			m.serviceReg |= 1 << uint(i)
			return i, nil
		}
	}
	return 0, ErrNoInterrupts
}

// InService reports whether a line is in the service register.
func (m *Device) InService(line int) bool {
	if line < 0 || line >= m.lines {
		return false
	}
	return m.serviceReg&(1<<uint(line)) != 0
}

// EOI retires the line from the service register.
func (m *Device) EOI(line int) {
	if line >= 0 && line < m.lines {
		m.serviceReg &^= 1 << uint(line)
	}
}

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

// Package keyboard is a demo interrupt consumer: host key events queue
// scancodes and assert the keyboard vector; the service routine drains
// the queue.
package keyboard

import (
	"errors"

	"github.com/osterlund/virtualint/driver"
	"github.com/osterlund/virtualint/kernel/hal"
	"github.com/osterlund/virtualint/kernel/interrupt"
	"github.com/osterlund/virtualint/kernel/irql"
)

const MaxEvents = 64

type Scancode byte

const KeyUpMask Scancode = 0x80

const (
	ScanInvalid Scancode = iota
	ScanEscape
	ScanEnter
	ScanBackspace
	ScanTab
	ScanSpace
	ScanLeft
	ScanRight
	ScanUp
	ScanDown
)

type Device struct {
	Vector    int
	Level     irql.Level
	Processor int

	host   driver.Host
	intr   interrupt.Object
	events chan Scancode
	last   Scancode
	quit   chan struct{}
}

func (m *Device) Install(h driver.Host) error {
	m.host = h
	m.events = make(chan Scancode, MaxEvents)
	m.quit = make(chan struct{})

	k := h.Kernel()
	k.Initialize(&m.intr, m.serviceRoutine, nil, nil,
		m.Vector, m.Level, m.Level, hal.Latched, true, m.Processor, false)
	if !k.Connect(&m.intr) {
		return errors.New("keyboard: vector connect failed")
	}

	m.startEventLoop()
	return nil
}

func (m *Device) Name() string {
	return "Keyboard Controller"
}

func (m *Device) Reset() {
	m.last = ScanInvalid
	for {
		select {
		case <-m.events:
		default:
			return
		}
	}
}

func (m *Device) Close() error {
	close(m.quit)
	m.host.Kernel().Disconnect(&m.intr)
	return nil
}

// Last returns the most recently serviced scancode.
func (m *Device) Last() Scancode {
	return m.last
}

func (m *Device) pushEvent(ev Scancode) error {
	select {
	case m.events <- ev:
		m.host.Interrupt(m.Processor, m.Vector)
		return nil
	default:
		return errors.New("keyboard: event queue is full")
	}
}

// serviceRoutine drains queued scancodes. It claims the interrupt only
// when the device actually had data, which matters on shared vectors.
func (m *Device) serviceRoutine(i *interrupt.Object, context interface{}) bool {
	handled := false
	for {
		select {
		case sc := <-m.events:
			m.last = sc
			handled = true
		default:
			return handled
		}
	}
}

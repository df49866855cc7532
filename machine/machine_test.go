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

package machine

import (
	"testing"

	"github.com/osterlund/virtualint/kernel/hal"
)

func testConfig() Config {
	return Config{
		Processors:  2,
		Vectors:     0x100,
		LineBase:    0x30,
		Lines:       32,
		FlatBase:    0x40,
		FlatVectors: 16,
	}
}

func TestConfigSanitize(t *testing.T) {
	m := New(Config{})
	if m.NumProcessors() != 1 {
		t.Errorf("processors = %d, want 1", m.NumProcessors())
	}
	if m.Vectors() != 0x100 {
		t.Errorf("vectors = %d, want 256", m.Vectors())
	}
}

func TestDispatchSlotKinds(t *testing.T) {
	m := New(testConfig())

	if slot := m.DispatchSlot(0x20); slot.Kind != hal.DirectDispatch {
		t.Errorf("vector 0x20 kind %d, want direct", slot.Kind)
	}

	slot := m.DispatchSlot(0x42)
	if slot.Kind != hal.FlatDispatch {
		t.Fatalf("vector 0x42 kind %d, want flat", slot.Kind)
	}
	if slot.Flat == nil || slot.NoDispatch != flatNoDispatchAddr {
		t.Error("flat slot not populated")
	}

	if slot := m.DispatchSlot(0x50); slot.Kind != hal.DirectDispatch {
		t.Errorf("vector 0x50 kind %d, want direct", slot.Kind)
	}
}

func TestLineControl(t *testing.T) {
	m := New(testConfig())
	const vector = 0x35

	if m.LineEnabled(vector) {
		t.Error("line enabled at reset")
	}
	if !m.EnableLine(vector, 5, hal.Latched) {
		t.Fatal("enable failed")
	}
	if !m.LineEnabled(vector) {
		t.Error("line not enabled")
	}
	m.DisableLine(vector, 5)
	if m.LineEnabled(vector) {
		t.Error("line still enabled")
	}

	// Vectors with no backing line cannot be enabled.
	if m.EnableLine(0x10, 5, hal.Latched) {
		t.Error("enabled a vector with no backing line")
	}
	if m.EnableLine(0x30+32, 5, hal.Latched) {
		t.Error("enabled a vector past the last line")
	}
}

func TestSweepCounter(t *testing.T) {
	m := New(testConfig())
	before := m.Sweeps()
	m.SweepCache()
	m.SweepCache()
	if m.Sweeps() != before+2 {
		t.Errorf("sweeps = %d, want %d", m.Sweeps(), before+2)
	}
}

func TestInterruptBounds(t *testing.T) {
	m := New(testConfig())
	if m.Interrupt(0, -1) || m.Interrupt(0, m.Vectors()) {
		t.Error("out of range vector delivered")
	}
	if m.Unexpected() != 0 {
		t.Error("out of range vector reached the dispatch table")
	}
}

func TestDeliveryRetiresServicedLine(t *testing.T) {
	m := New(testConfig())

	// A masked delivery records the assertion on line 1. Once both lines
	// are unmasked, delivering on line 2 makes the controller pick the
	// older, lower assertion for service; that is the line that must be
	// retired or it sticks in the service register.
	m.Interrupt(0, 0x31)
	m.pic.Enable(1)
	m.pic.Enable(2)
	m.Interrupt(0, 0x32)

	if m.pic.InService(1) || m.pic.InService(2) {
		t.Error("line left in the service register after delivery")
	}
}

func TestUnexpectedCounter(t *testing.T) {
	m := New(testConfig())

	// Outside the PIC range there is no mask to stop delivery, so each
	// one lands in the stub and is counted.
	m.Interrupt(0, 0x90)
	m.Interrupt(1, 0x90)
	if m.Unexpected() != 2 {
		t.Errorf("unexpected = %d, want 2", m.Unexpected())
	}
}

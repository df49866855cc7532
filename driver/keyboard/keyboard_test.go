// +build !sdl

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

package keyboard_test

import (
	"testing"
	"time"

	"github.com/gdamore/tcell"

	"github.com/osterlund/virtualint/driver/keyboard"
	"github.com/osterlund/virtualint/machine"
)

func TestKeyEventRoundTrip(t *testing.T) {
	m := machine.New(machine.Config{
		Processors: 1,
		Vectors:    0x100,
		LineBase:   0x30,
		Lines:      32,
	})
	kb := &keyboard.Device{Vector: 0x31, Level: 5, Processor: 0}
	if err := kb.Install(m); err != nil {
		t.Fatal(err)
	}
	defer kb.Close()

	if err := kb.SendKeyEvent(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)); err != nil {
		t.Fatal(err)
	}

	// The key-down is serviced synchronously; the synthesized key-up
	// arrives from its own goroutine shortly after. Reading under the
	// processor's execution slot orders us against the ISR.
	want := keyboard.ScanEnter | keyboard.KeyUpMask
	deadline := time.Now().Add(time.Second)
	for {
		_, revert := m.System().PinTo(0)
		last := kb.Last()
		revert()

		if last == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("last scancode %#x, want %#x", last, want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestUnknownEventRejected(t *testing.T) {
	kb := &keyboard.Device{}
	if kb.SendKeyEvent(42) == nil {
		t.Error("unknown event type accepted")
	}
}

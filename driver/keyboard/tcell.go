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

package keyboard

import (
	"errors"
	"time"

	"github.com/gdamore/tcell"
)

// The terminal frontend owns the event loop and forwards key events here.
func (m *Device) startEventLoop() {
}

// SendKeyEvent translates a frontend key event into a scancode pair:
// press immediately, release shortly after.
func (m *Device) SendKeyEvent(ev interface{}) error {
	t, ok := ev.(*tcell.EventKey)
	if !ok {
		return errors.New("keyboard: unknown event type")
	}

	deviceEvent := createEventFromTCELL(t)
	if deviceEvent == ScanInvalid {
		return errors.New("keyboard: unknown key")
	}

	if err := m.pushEvent(deviceEvent); err != nil {
		return err
	}

	go func() {
		deviceEvent |= KeyUpMask
		time.Sleep(10 * time.Millisecond)
		for m.pushEvent(deviceEvent) != nil {
			// Queue full; wait for the ISR to drain some events.
			select {
			case <-m.quit:
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()
	return nil
}

func createEventFromTCELL(ev *tcell.EventKey) Scancode {
	switch ev.Key() {
	case tcell.KeyEscape:
		return ScanEscape
	case tcell.KeyEnter:
		return ScanEnter
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return ScanBackspace
	case tcell.KeyTab:
		return ScanTab
	case tcell.KeyLeft:
		return ScanLeft
	case tcell.KeyRight:
		return ScanRight
	case tcell.KeyUp:
		return ScanUp
	case tcell.KeyDown:
		return ScanDown
	case tcell.KeyRune:
		if ev.Rune() == ' ' {
			return ScanSpace
		}
	}
	return ScanInvalid
}

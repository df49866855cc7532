// +build sdl

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

	"github.com/veandco/go-sdl2/sdl"
)

// The SDL build polls its own event queue; the host application must be
// running inside sdl.Main.
func (m *Device) startEventLoop() {
	go func() {
		ticker := time.NewTicker(time.Second / 30)
		defer ticker.Stop()

		for {
			select {
			case <-m.quit:
				return
			case <-ticker.C:
				sdl.Do(func() {
					for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
						if ev, ok := event.(*sdl.KeyboardEvent); ok {
							m.sdlProcessKey(ev)
						}
					}
				})
			}
		}
	}()
}

func (m *Device) SendKeyEvent(ev interface{}) error {
	t, ok := ev.(*sdl.KeyboardEvent)
	if !ok {
		return errors.New("keyboard: unknown event type")
	}
	m.sdlProcessKey(t)
	return nil
}

func (m *Device) sdlProcessKey(ev *sdl.KeyboardEvent) {
	deviceEvent := createEventFromSDL(ev.Keysym.Sym)
	if deviceEvent == ScanInvalid {
		return
	}
	if ev.Type == sdl.KEYUP {
		deviceEvent |= KeyUpMask
	}
	m.pushEvent(deviceEvent)
}

func createEventFromSDL(key sdl.Keycode) Scancode {
	switch key {
	case sdl.K_ESCAPE:
		return ScanEscape
	case sdl.K_RETURN:
		return ScanEnter
	case sdl.K_BACKSPACE:
		return ScanBackspace
	case sdl.K_TAB:
		return ScanTab
	case sdl.K_SPACE:
		return ScanSpace
	case sdl.K_LEFT:
		return ScanLeft
	case sdl.K_RIGHT:
		return ScanRight
	case sdl.K_UP:
		return ScanUp
	case sdl.K_DOWN:
		return ScanDown
	}
	return ScanInvalid
}

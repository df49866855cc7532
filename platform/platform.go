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

// Package platform holds the host-facing pieces: the filesystem the
// machine configuration is read from and the configuration format itself.
package platform

import (
	"encoding/json"

	"github.com/spf13/afero"
)

// Instance is the filesystem configuration is loaded from. Tests and the
// wasm build replace it with an in-memory filesystem.
var Instance afero.Fs = afero.NewOsFs()

type Config struct {
	Processors  int `json:"processors"`
	Vectors     int `json:"vectors"`
	LineBase    int `json:"line_base"`
	Lines       int `json:"lines"`
	FlatBase    int `json:"flat_base"`
	FlatVectors int `json:"flat_vectors"`

	// ISRTimeLimitUS is the service routine time limit in microseconds.
	// Zero disables the latency watchdog.
	ISRTimeLimitUS uint32 `json:"isr_time_limit_us"`

	KeyboardVector int `json:"keyboard_vector"`
	NetworkVector  int `json:"network_vector"`
}

func DefaultConfig() Config {
	return Config{
		Processors:     2,
		Vectors:        0x100,
		LineBase:       0x30,
		Lines:          32,
		FlatBase:       0x40,
		FlatVectors:    16,
		ISRTimeLimitUS: 0,
		KeyboardVector: 0x31,
		NetworkVector:  0x3B,
	}
}

// LoadConfig reads a JSON machine configuration from fs. Missing fields
// keep their defaults.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

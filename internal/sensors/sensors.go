// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors wraps the drivers behind a runtime capability check. A
// source is either present (backed by a driver) or absent; the acquisition
// loop is written once against the interfaces below.
package sensors

import "errors"

// ErrAbsent is returned by every read on an absent source.
var ErrAbsent = errors.New("sensor absent")

type absent struct{ name string }

func (a absent) Name() string  { return a.name }
func (a absent) Present() bool { return false }

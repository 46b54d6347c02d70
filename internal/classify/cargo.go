// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package classify derives the cargo type of a video from the report.json
// sidecar stored next to it.
package classify

import (
	"fmt"
	"strings"
)

// CargoType is the kind of load visible in a video.
type CargoType string

const (
	CargoBunker  CargoType = "bunker"
	CargoEuro    CargoType = "euro"
	CargoUnknown CargoType = "unknown"
)

// Switch codes reported by the recorder.
const (
	SwitchBunker = 22
	SwitchEuro   = 23
)

// CargoFromSwitch maps a recorder switch code to a cargo type.
func CargoFromSwitch(code int) CargoType {
	switch code {
	case SwitchBunker:
		return CargoBunker
	case SwitchEuro:
		return CargoEuro
	default:
		return CargoUnknown
	}
}

// ParseCargoType parses a cargo filter value.
func ParseCargoType(s string) (CargoType, error) {
	switch c := CargoType(strings.ToLower(strings.TrimSpace(s))); c {
	case CargoBunker, CargoEuro, CargoUnknown:
		return c, nil
	default:
		return "", fmt.Errorf("unknown cargo type %q (want bunker, euro or unknown)", s)
	}
}

func (c CargoType) String() string { return string(c) }

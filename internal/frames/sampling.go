// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package frames

import (
	"fmt"
	"math"
)

// Ext is the extension of every frame file.
const Ext = ".jpg"

// Interval returns how many decoded frames to advance per sampled frame:
// floor(sourceFPS/targetFPS), never below 1.
func Interval(sourceFPS, targetFPS float64) int {
	if sourceFPS <= 0 || targetFPS <= 0 {
		return 1
	}
	n := math.Floor(sourceFPS / targetFPS)
	if n < 1 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// FrameName returns "<base>_<seq:06d>.jpg".
func FrameName(base string, seq int) string {
	return fmt.Sprintf("%s_%06d%s", base, seq, Ext)
}

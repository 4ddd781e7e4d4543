package main

import (
	"fmt"
	"os"

	compcommon "github.com/cwbudde/algo-comp/internal/compcommon"
)

func clamp(v, lo, hi float64) float64 {
	return compcommon.Clamp(v, lo, hi)
}

func minInt(a, b int) int {
	return compcommon.MinInt(a, b)
}

func maxInt(a, b int) int {
	return compcommon.MaxInt(a, b)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

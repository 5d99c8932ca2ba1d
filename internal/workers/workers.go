package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that fixes the number of
// concurrent conversions.
const EnvOverride = "CONVERT_WORKERS"

// conversionRatio is the share of CPUs given one conversion slot each.
// ffmpeg encoders are multi-threaded, so one job per CPU oversubscribes.
const conversionRatio = 0.25

// MaxConversions caps the automatic conversion count.
const MaxConversions = 4

// Count returns the number of workers for the given CPU multiplier,
// respecting container CPU limits via GOMAXPROCS.
//
// The limit parameter caps the worker count. Use 0 for no limit.
//
// Can be overridden with the CONVERT_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)
	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// Conversions returns how many ffmpeg processes may run at once: one per
// four CPUs, at least one and at most MaxConversions unless overridden.
func Conversions() int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return count
		}
	}
	return Count(conversionRatio, MaxConversions)
}

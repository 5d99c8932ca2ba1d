/*
Package workers sizes the conversion worker pool in containerized
environments.

# Overview

Go 1.19+ sets GOMAXPROCS from the container CPU limit, while
runtime.NumCPU() still reports the host's CPUs. Count and Conversions use
GOMAXPROCS so a pod limited to 2 CPUs on a 64-core node does not start 64
encoders.

Each ffmpeg process already spreads its encoder across several threads, so
Conversions allows one job per four available CPUs, at least one and at
most MaxConversions.

# Environment Variable Override

CONVERT_WORKERS fixes the number of concurrent conversions:

	env:
	- name: CONVERT_WORKERS
	  value: "2"

An override is not capped by MaxConversions. Invalid or non-positive values
are ignored.
*/
package workers

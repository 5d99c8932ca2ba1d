package progress

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sample is one progress reading taken from ffmpeg.
type Sample struct {
	Frame   int64
	FPS     float64
	OutTime time.Duration
	HasTime bool
	Bitrate string
	Speed   float64
	// End is set when ffmpeg reported progress=end.
	End bool
}

// statsLine matches ffmpeg's periodic stats line, for example
//
//	frame=  240 fps= 48 q=28.0 size=     512kB time=00:00:10.00 bitrate= 419.4kbits/s speed=1.99x
var statsLine = regexp.MustCompile(`frame=\s*(\d+)\s+fps=\s*([\d\.]+)\s+.*time=\s*([\d:.]+)\s+.*bitrate=\s*([\w\./]+)\s+.*speed=\s*([\d\.]+)x`)

// ParseProgressLine extracts a Sample from one stderr line. Lines that are
// not stats lines return false and are diagnostic output.
func ParseProgressLine(line string) (Sample, bool) {
	m := statsLine.FindStringSubmatch(line)
	if m == nil {
		return Sample{}, false
	}

	frame, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Sample{}, false
	}
	s := Sample{Frame: frame, Bitrate: m[4]}
	s.FPS, _ = strconv.ParseFloat(m[2], 64)
	s.Speed, _ = strconv.ParseFloat(m[5], 64)
	if d, ok := ParseClock(m[3]); ok {
		s.OutTime = d
		s.HasTime = true
	}
	return s, true
}

// ParseKeyValues parses the key=value progress written with -progress.
// Each report ends with a progress=continue or progress=end line; the
// last complete report wins. A trailing incomplete report is only used
// when no complete one exists yet. Samples without a positive frame
// count are rejected since they usually come from a half-written file.
func ParseKeyValues(data []byte) (Sample, bool) {
	var (
		current  Sample
		complete Sample
		done     bool
		touched  bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		touched = true
		applyField(&current, key, strings.TrimSpace(value))
		if key == "progress" {
			complete = current
			done = true
			current = Sample{}
			touched = false
		}
	}

	s := complete
	if !done {
		if !touched {
			return Sample{}, false
		}
		s = current
	}
	if s.Frame <= 0 {
		return Sample{}, false
	}
	return s, true
}

func applyField(s *Sample, key, value string) {
	switch key {
	case "frame":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			s.Frame = v
		}
	case "fps":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			s.FPS = v
		}
	case "bitrate":
		s.Bitrate = value
	case "speed":
		if v, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			s.Speed = v
		}
	case "out_time_us", "out_time_ms":
		// out_time_ms is in microseconds as well; ffmpeg never fixed the name.
		if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
			s.OutTime = time.Duration(v) * time.Microsecond
			s.HasTime = true
		}
	case "out_time":
		if !s.HasTime {
			if d, ok := ParseClock(value); ok {
				s.OutTime = d
				s.HasTime = true
			}
		}
	case "progress":
		s.End = value == "end"
	}
}

// ParseClock parses HH:MM:SS(.frac) or MM:SS(.frac) into a duration.
func ParseClock(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	var hours, minutes int64
	var err error
	if len(parts) == 3 {
		if hours, err = strconv.ParseInt(parts[0], 10, 64); err != nil || hours < 0 {
			return 0, false
		}
		parts = parts[1:]
	}
	if minutes, err = strconv.ParseInt(parts[0], 10, 64); err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || seconds < 0 {
		return 0, false
	}

	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}

// FormatClock renders d as HH:MM:SS.cc, the way ffmpeg prints time=.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Round(10*time.Millisecond) / (10 * time.Millisecond)
	h := cs / 360000
	m := (cs / 6000) % 60
	sec := (cs / 100) % 60
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, sec, cs%100)
}

// ScanLines is a bufio.SplitFunc that splits on \n, \r\n and bare \r.
// ffmpeg terminates its stats line with \r so it can redraw it in place.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// Need one more byte to tell \r from \r\n.
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProbeError reports that the container metadata could not be read.
type ProbeError struct {
	Path   string
	Output string
	Err    error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("probe %s: %v", e.Path, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Inspector reads container duration with ffprobe.
type Inspector struct {
	runner Runner
	binary string
}

// NewInspector creates an inspector. An empty binary defaults to "ffprobe".
func NewInspector(runner Runner, binary string) *Inspector {
	if binary == "" {
		binary = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Inspector{runner: runner, binary: binary}
}

// Duration returns the container duration in seconds.
// Zero, negative, NaN and infinite values are reported as a ProbeError.
func (i *Inspector) Duration(ctx context.Context, path string) (float64, error) {
	stdout, stderr, err := i.runner.Run(ctx, i.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, &ProbeError{Path: path, Output: strings.TrimSpace(string(stderr)), Err: err}
	}
	seconds, err := ParseDuration(string(stdout))
	if err != nil {
		return 0, &ProbeError{Path: path, Output: strings.TrimSpace(string(stderr)), Err: err}
	}
	return seconds, nil
}

// ParseDuration parses ffprobe's bare duration output.
func ParseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	// Some containers report one line per program; the first is the format duration.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("unusable duration %q", s)
	}
	return v, nil
}

// RoundMinutes converts seconds to whole minutes, rounding to nearest.
func RoundMinutes(seconds float64) int {
	return int(math.Round(seconds / 60))
}

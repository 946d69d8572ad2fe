package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	// ManifestName is the playlist written into every package directory.
	ManifestName = "index.m3u8"
	// SegmentPattern is the zero-padded segment naming scheme passed to ffmpeg.
	SegmentPattern = "segment%03d.ts"
	// DefaultSegmentSeconds is the target segment duration.
	DefaultSegmentSeconds = 10
)

// TranscodeError reports a failed packaging run with the tool's diagnostic output.
type TranscodeError struct {
	Source string
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("transcode %s: %v", e.Source, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Package is a finished HLS package on disk.
type Package struct {
	Dir          string
	ManifestPath string
	Segments     []string
}

// Transcoder repackages a source file into a VOD HLS package without re-encoding.
type Transcoder struct {
	runner         Runner
	binary         string
	segmentSeconds int
}

// NewTranscoder creates a transcoder. Zero segmentSeconds uses DefaultSegmentSeconds.
func NewTranscoder(runner Runner, binary string, segmentSeconds int) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}
	return &Transcoder{runner: runner, binary: binary, segmentSeconds: segmentSeconds}
}

// SegmentSeconds returns the configured segment duration.
func (t *Transcoder) SegmentSeconds() int { return t.segmentSeconds }

// Args returns the ffmpeg argument vector for packaging src into outDir.
func (t *Transcoder) Args(src, outDir string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-codec", "copy",
		"-start_number", "0",
		"-hls_time", strconv.Itoa(t.segmentSeconds),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outDir, SegmentPattern),
		"-f", "hls",
		filepath.Join(outDir, ManifestName),
	}
}

// Transcode writes the package into outDir, which must exist.
func (t *Transcoder) Transcode(ctx context.Context, src, outDir string) (*Package, error) {
	_, stderr, err := t.runner.Run(ctx, t.binary, t.Args(src, outDir)...)
	if err != nil {
		return nil, &TranscodeError{Source: src, Output: strings.TrimSpace(string(stderr)), Err: err}
	}
	pkg, err := ReadPackage(outDir)
	if err != nil {
		return nil, &TranscodeError{Source: src, Output: strings.TrimSpace(string(stderr)), Err: err}
	}
	return pkg, nil
}

// ReadPackage checks that dir holds a manifest and at least one segment.
func ReadPackage(dir string) (*Package, error) {
	manifest := filepath.Join(dir, ManifestName)
	info, err := os.Stat(manifest)
	if err != nil {
		return nil, fmt.Errorf("manifest missing: %w", err)
	}
	if info.Size() == 0 {
		return nil, errors.New("manifest is empty")
	}
	segments, err := filepath.Glob(filepath.Join(dir, "segment*.ts"))
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, errors.New("no segments written")
	}
	sortSegments(segments)
	return &Package{Dir: dir, ManifestPath: manifest, Segments: segments}, nil
}

// sortSegments orders segment paths by their numeric index. Names past segment999.ts
// grow a digit, so lexical order would put segment1000.ts before segment101.ts.
func sortSegments(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, aok := segmentIndex(paths[i])
		b, bok := segmentIndex(paths[j])
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		}
		return paths[i] < paths[j]
	})
}

func segmentIndex(path string) (int, bool) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "segment"), ".ts")
	n, err := strconv.Atoi(name)
	return n, err == nil
}

// SegmentName returns the file name of segment i.
func SegmentName(i int) string {
	return fmt.Sprintf(SegmentPattern, i)
}

// ExpectedSegments is the number of segments covering seconds at segmentSeconds each,
// counting a partial final segment.
func ExpectedSegments(seconds float64, segmentSeconds int) int {
	if seconds <= 0 || segmentSeconds <= 0 {
		return 0
	}
	return int(math.Ceil(seconds / float64(segmentSeconds)))
}

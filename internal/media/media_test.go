package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout string
	stderr string
	err    error
	// onRun simulates side effects such as ffmpeg writing files.
	onRun func(args []string)

	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	if f.onRun != nil {
		f.onRun(args)
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestInspectorDuration(t *testing.T) {
	r := &fakeRunner{stdout: "600.040000\n"}
	insp := NewInspector(r, "")

	d, err := insp.Duration(context.Background(), "/tmp/a.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 600.04, d, 0.0001)
	assert.Equal(t, "ffprobe", r.name)
	assert.Equal(t, "/tmp/a.mp4", r.args[len(r.args)-1])
	assert.Contains(t, r.args, "format=duration")
}

func TestInspectorRejectsUnusableDurations(t *testing.T) {
	for _, out := range []string{"", "N/A", "0", "-3.2", "NaN", "inf", "abc"} {
		insp := NewInspector(&fakeRunner{stdout: out}, "ffprobe")
		_, err := insp.Duration(context.Background(), "x.mp4")
		var pe *ProbeError
		require.ErrorAs(t, err, &pe, "output %q", out)
	}
}

func TestInspectorToolFailure(t *testing.T) {
	insp := NewInspector(&fakeRunner{err: errors.New("exit status 1"), stderr: "moov atom not found"}, "ffprobe")
	_, err := insp.Duration(context.Background(), "x.mp4")
	var pe *ProbeError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "moov atom not found")
}

func TestRoundMinutes(t *testing.T) {
	assert.Equal(t, 10, RoundMinutes(600))
	assert.Equal(t, 1, RoundMinutes(89))
	assert.Equal(t, 2, RoundMinutes(90))
	assert.Equal(t, 0, RoundMinutes(12))
}

func TestTranscoderArgs(t *testing.T) {
	tr := NewTranscoder(nil, "", 0)
	args := tr.Args("/in/src.mp4", "/out/v1")

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/in/src.mp4",
		"-codec", "copy",
		"-start_number", "0",
		"-hls_time", "10",
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join("/out/v1", "segment%03d.ts"),
		"-f", "hls",
		filepath.Join("/out/v1", "index.m3u8"),
	}, args)
}

func TestTranscodeWritesPackage(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{onRun: func([]string) {
		writePackage(t, dir, 60)
	}}
	pkg, err := NewTranscoder(r, "ffmpeg", 10).Transcode(context.Background(), "src.mp4", dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ManifestName), pkg.ManifestPath)
	require.Len(t, pkg.Segments, ExpectedSegments(60, 10))
	assert.Equal(t, filepath.Join(dir, "segment000.ts"), pkg.Segments[0])
}

func TestTranscodeFailureCarriesDiagnostics(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1"), stderr: "Invalid data found when processing input"}
	_, err := NewTranscoder(r, "ffmpeg", 10).Transcode(context.Background(), "src.mp4", t.TempDir())

	var te *TranscodeError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Output, "Invalid data")
}

func TestTranscodeWithoutSegmentsFails(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{onRun: func([]string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte("#EXTM3U\n"), 0o644))
	}}
	_, err := NewTranscoder(r, "ffmpeg", 10).Transcode(context.Background(), "src.mp4", dir)
	var te *TranscodeError
	require.ErrorAs(t, err, &te)
}

func TestReadPackageOrdersPastThreeDigits(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, 10010) // 1001 segments
	pkg, err := ReadPackage(dir)
	require.NoError(t, err)

	require.Len(t, pkg.Segments, 1001)
	for i, seg := range pkg.Segments {
		require.Equal(t, SegmentName(i), filepath.Base(seg))
	}
	assert.Equal(t, "segment1000.ts", filepath.Base(pkg.Segments[1000]))
}

func TestExpectedSegments(t *testing.T) {
	assert.Equal(t, 60, ExpectedSegments(600, 10))
	assert.Equal(t, 61, ExpectedSegments(600.5, 10))
	assert.Equal(t, 1, ExpectedSegments(3, 10))
	assert.Equal(t, 0, ExpectedSegments(0, 10))
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	b := &tailBuffer{limit: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("def"))
	assert.Equal(t, "cdef", string(b.Bytes()))
	_, _ = b.Write([]byte("0123456"))
	assert.Equal(t, "3456", string(b.Bytes()))
}

func writePackage(t *testing.T, dir string, seconds float64) {
	t.Helper()
	n := ExpectedSegments(seconds, 10)
	for i := 0; i < n; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, SegmentName(i)), []byte{0x47}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte("#EXTM3U\n#EXT-X-ENDLIST\n"), 0o644))
}

package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetupConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.toml")

	bc, err := SetupConfig(path)
	require.NoError(t, err)
	require.Equal(t, int64(7200), bc.Export.MaxPlaylistSeconds)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	again, err := SetupConfig(path)
	require.NoError(t, err)
	require.Equal(t, bc.Export, again.Export)
	require.Equal(t, 6*time.Hour, again.Export.SynthesizeTimeout.Duration())
}

func TestSetupConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	const body = `
[export]
dir = "/data/exports"
max_playlist_seconds = 600
workers = 4
niceness = 40
trim_timeout = "5m"

[export.hwaccel]
preset = "preset-vaapi"

[cameras.front_door]
timelapse_args = ["-vf", "setpts=0.02*PTS"]

[cameras.front_door.hwaccel]
args = ["-hwaccel", "cuda"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	bc, err := SetupConfig(path)
	require.NoError(t, err)

	e := bc.Export
	require.Equal(t, "/data/exports", e.Dir)
	require.Equal(t, int64(600), e.MaxPlaylistSeconds)
	require.Equal(t, 4, e.Workers)
	require.Equal(t, 19, e.Niceness)
	require.Equal(t, 5*time.Minute, e.TrimTimeout.Duration())
	require.Equal(t, "ffmpeg", e.FFmpegPath)
	require.Equal(t, 1000, e.PageSize)

	cam := bc.Cameras["front_door"]
	require.Equal(t, []string{"-hwaccel", "cuda"}, e.HWAccelFor(cam).Args)
	require.Equal(t, []string{"-vf", "setpts=0.02*PTS"}, e.TimelapseArgsFor(cam))

	other := bc.Cameras["back_yard"]
	require.Equal(t, "preset-vaapi", e.HWAccelFor(other).Preset)
	require.Equal(t, []string{"-vf", "setpts=0.04*PTS", "-r", "30"}, e.TimelapseArgsFor(other))
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	require.Equal(t, 90*time.Second, d.Duration())

	b, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(b))

	require.Error(t, d.UnmarshalText([]byte("soon")))
}

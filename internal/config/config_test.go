package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/colornames"

	"github.com/esimov/facemark"
)

func TestConfig_Defaults(t *testing.T) {
	assert := assert.New(t)
	for _, key := range []string{"PORT", "LOG_LEVEL", "CAMERA_DEVICE", "REFRESH_INTERVAL", "NATS_MAX_RECONNECTS", "NATS_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(8000, cfg.Port)
	assert.Equal("info", cfg.LogLevel)
	assert.Equal("0", cfg.CameraDevice)
	assert.Equal(16*time.Millisecond, cfg.RefreshInterval)
	assert.Equal(-1, cfg.NatsMaxReconnects)
	assert.Empty(cfg.NatsURL)
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("PORT", "9100")
	t.Setenv("IOU_THRESHOLD", "0.35")
	t.Setenv("SHOW_KEYPOINTS", "false")
	t.Setenv("NATS_RECONNECT_WAIT", "500ms")
	t.Setenv("MIN_FACE_SIZE", "not-a-number")

	cfg := Load()

	assert.Equal(9100, cfg.Port)
	assert.Equal(0.35, cfg.IoUThreshold)
	assert.False(cfg.ShowKeypoints)
	assert.Equal(500*time.Millisecond, cfg.NatsReconnectWait)
	assert.Equal(60, cfg.MinFaceSize)
}

func TestConfig_Style(t *testing.T) {
	cfg := Load()
	style, err := cfg.Style()
	require.NoError(t, err)
	assert.Equal(t, facemark.DefaultStyle(), style)

	cfg.BoxColor = "#00ff00"
	cfg.BoxWidth = 5
	style, err = cfg.Style()
	require.NoError(t, err)
	assert.Equal(t, 5.0, style.BoxStrokeWidth)
	assert.NotEqual(t, colornames.Tomato, style.BoxColor)

	cfg.PointColor = "chartreuse-ish"
	_, err = cfg.Style()
	assert.Error(t, err)
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Detector assets, as local paths or URLs
	FaceCascade        string
	PupilCascade       string
	LandmarkCascadeDir string

	// Detection window
	MinFaceSize    int
	MaxFaceSize    int
	DetectMaxWidth int
	IoUThreshold   float64

	// Capture
	CameraDevice  string
	DisplayWidth  int
	DisplayHeight int

	// Overlay
	PointColor       string
	BoxColor         string
	BoxWidth         float64
	PointSize        float64
	ShowKeypoints    bool
	OverlayComposite string
	RefreshInterval  time.Duration
	JPEGQuality      int

	// NATS presence events; disabled when NatsURL is empty
	NatsURL            string
	NatsSubject        string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		FaceCascade:        getEnv("FACE_CASCADE", ""),
		PupilCascade:       getEnv("PUPIL_CASCADE", ""),
		LandmarkCascadeDir: getEnv("LANDMARK_CASCADE_DIR", ""),

		MinFaceSize:    getEnvInt("MIN_FACE_SIZE", 60),
		MaxFaceSize:    getEnvInt("MAX_FACE_SIZE", 1000),
		DetectMaxWidth: getEnvInt("DETECT_MAX_WIDTH", 640),
		IoUThreshold:   getEnvFloat("IOU_THRESHOLD", 0.2),

		CameraDevice:  getEnv("CAMERA_DEVICE", "0"),
		DisplayWidth:  getEnvInt("DISPLAY_WIDTH", 0),
		DisplayHeight: getEnvInt("DISPLAY_HEIGHT", 0),

		PointColor:       getEnv("POINT_COLOR", "aquamarine"),
		BoxColor:         getEnv("BOX_COLOR", "tomato"),
		BoxWidth:         getEnvFloat("BOX_WIDTH", 3),
		PointSize:        getEnvFloat("POINT_SIZE", 2),
		ShowKeypoints:    getEnvBool("SHOW_KEYPOINTS", true),
		OverlayComposite: getEnv("OVERLAY_COMPOSITE", "src_over"),
		RefreshInterval:  getEnvDuration("REFRESH_INTERVAL", 16*time.Millisecond),
		JPEGQuality:      getEnvInt("JPEG_QUALITY", 85),

		NatsURL:            getEnv("NATS_URL", ""),
		NatsSubject:        getEnv("NATS_SUBJECT", "facemark.presence"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

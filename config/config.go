// Package config reads server and launcher settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultPort        = 3000
	DefaultHost        = "0.0.0.0"
	DefaultModelPath   = "./models/yolov8n.onnx"
	DefaultStaticDir   = "./www"
	DefaultMaxUploadMB = 10
	DefaultTimeout     = 60 * time.Second

	DefaultLaunchCommand = "./object-detection-service"
	DefaultReadyTimeout  = 15 * time.Second
	DefaultGracePeriod   = 5 * time.Second
)

type Server struct {
	Host        string        `validate:"required"`
	Port        int           `validate:"min=1,max=65535"`
	ModelPath   string        `validate:"required,file"`
	LibraryPath string        `validate:"required"`
	Sessions    int           `validate:"min=1,max=16"`
	Threads     int           `validate:"min=0,max=256"`
	StaticDir   string        `validate:"required"`
	MaxUploadMB int64         `validate:"min=1,max=100"`
	ReadTimeout time.Duration `validate:"gt=0"`
	// WriteTimeout also bounds one full detection request.
	WriteTimeout time.Duration `validate:"gt=0"`
	LogLevel     string        `validate:"oneof=trace debug info warn warning error fatal panic"`
	Env          string
}

func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Server) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

type Launcher struct {
	Command string `validate:"required"`
	Args    []string
	// ServerURL is where the child serves locally; the tunnel forwards to it.
	ServerURL     string        `validate:"required,url"`
	ReadyTimeout  time.Duration `validate:"gt=0"`
	GracePeriod   time.Duration `validate:"gt=0"`
	TunnelEnabled bool
	// AuthToken may be empty here; the launcher prompts for it.
	AuthToken string
	LogLevel  string `validate:"oneof=trace debug info warn warning error fatal panic"`
	Env       string
}

var validate = validator.New()

// LoadDotEnv seeds the environment from the given files, or ".env" when none
// are named. Variables already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadServer reads the server settings. defaultLib is used when
// ONNXRUNTIME_LIB is unset.
func LoadServer(defaultLib string) (Server, error) {
	r := &envReader{}
	cfg := Server{
		Host:         r.get("APP_HOST", DefaultHost),
		Port:         r.getInt("APP_PORT", DefaultPort),
		ModelPath:    r.get("MODEL_PATH", DefaultModelPath),
		LibraryPath:  r.get("ONNXRUNTIME_LIB", defaultLib),
		Sessions:     r.getInt("ENGINE_SESSIONS", 1),
		Threads:      r.getInt("ENGINE_THREADS", 0),
		StaticDir:    r.get("STATIC_DIR", DefaultStaticDir),
		MaxUploadMB:  int64(r.getInt("MAX_UPLOAD_MB", DefaultMaxUploadMB)),
		ReadTimeout:  r.getDuration("READ_TIMEOUT", DefaultTimeout),
		WriteTimeout: r.getDuration("WRITE_TIMEOUT", DefaultTimeout),
		LogLevel:     strings.ToLower(r.get("LOG_LEVEL", "info")),
		Env:          r.get("APP_ENV", "development"),
	}
	if r.err != nil {
		return Server{}, r.err
	}
	if err := validate.Struct(cfg); err != nil {
		return Server{}, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

func LoadLauncher() (Launcher, error) {
	r := &envReader{}
	cfg := Launcher{
		Command:       r.get("LAUNCH_COMMAND", DefaultLaunchCommand),
		Args:          strings.Fields(r.get("LAUNCH_ARGS", "")),
		ServerURL:     "http://127.0.0.1:" + strconv.Itoa(r.getInt("APP_PORT", DefaultPort)),
		ReadyTimeout:  r.getDuration("LAUNCH_READY_TIMEOUT", DefaultReadyTimeout),
		GracePeriod:   r.getDuration("LAUNCH_GRACE_PERIOD", DefaultGracePeriod),
		TunnelEnabled: r.getBool("TUNNEL_ENABLED", true),
		AuthToken:     r.get("NGROK_AUTHTOKEN", ""),
		LogLevel:      strings.ToLower(r.get("LOG_LEVEL", "info")),
		Env:           r.get("APP_ENV", "development"),
	}
	if r.err != nil {
		return Launcher{}, r.err
	}
	if err := validate.Struct(cfg); err != nil {
		return Launcher{}, fmt.Errorf("invalid launcher config: %w", err)
	}
	return cfg, nil
}

// envReader keeps the first parse error so callers can read every key and
// check once.
type envReader struct {
	err error
}

func (r *envReader) get(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *envReader) getInt(key string, def int) int {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *envReader) getBool(key string, def bool) bool {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

// getDuration accepts Go durations ("90s") or whole seconds ("90").
func (r *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s=%q: %w", key, value, err)
	}
}

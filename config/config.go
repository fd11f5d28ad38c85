package config

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

type TaskConfig struct {
	Model  string `toml:"model" mapstructure:"model"`
	Labels string `toml:"labels" mapstructure:"labels"`
	// Size is the square working resolution; 0 keeps the image's native size.
	Size int `toml:"size" mapstructure:"size"`
}

type Config struct {
	Host     string `toml:"host" mapstructure:"host"`
	Port     string `toml:"port" mapstructure:"port"`
	Libonnx  string `toml:"libonnx" mapstructure:"libonnx"`
	LogLevel string `toml:"log_level" mapstructure:"log_level"`

	PoolSize       int `toml:"pool_size" mapstructure:"pool_size"`
	IntraOpThreads int `toml:"intra_op_threads" mapstructure:"intra_op_threads"`
	InferTimeoutMs int `toml:"infer_timeout_ms" mapstructure:"infer_timeout_ms"`
	MaxUploadMB    int `toml:"max_upload_mb" mapstructure:"max_upload_mb"`
	// MaxPixels caps width*height of a decoded upload.
	MaxPixels int `toml:"max_pixels" mapstructure:"max_pixels"`

	Classify TaskConfig `toml:"classify" mapstructure:"classify"`
	Detect   TaskConfig `toml:"detect" mapstructure:"detect"`
	Segment  TaskConfig `toml:"segment" mapstructure:"segment"`
}

var (
	cfg      = Default()
	loadOnce sync.Once
)

func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           "8000",
		LogLevel:       "info",
		PoolSize:       min(runtime.NumCPU(), 4),
		InferTimeoutMs: 30000,
		MaxUploadMB:    16,
		MaxPixels:      40_000_000,
		Classify: TaskConfig{
			Model:  "static/classifier.onnx",
			Labels: "static/labels_cls.json",
			Size:   768,
		},
		Detect: TaskConfig{
			Model:  "static/detector.onnx",
			Labels: "static/labels_det.json",
		},
		Segment: TaskConfig{
			Model:  "static/segmenter.onnx",
			Labels: "static/labels_seg.json",
			Size:   520,
		},
	}
}

// Path returns the config file location, KONAVISION_CONFIG or config.toml.
func Path() string {
	if p := os.Getenv("KONAVISION_CONFIG"); p != "" {
		return p
	}
	return "config.toml"
}

func C() Config {
	loadOnce.Do(func() {
		loaded, err := Load(Path())
		if err != nil {
			panic(err)
		}
		cfg = loaded
	})
	return cfg
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := os.Stat(path); err != nil {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	}
	if c.InferTimeoutMs < 1 {
		return fmt.Errorf("infer_timeout_ms must be positive, got %d", c.InferTimeoutMs)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.MaxPixels < 1 {
		return fmt.Errorf("max_pixels must be positive, got %d", c.MaxPixels)
	}
	if c.IntraOpThreads < 0 {
		return fmt.Errorf("intra_op_threads must not be negative, got %d", c.IntraOpThreads)
	}
	if c.Detect.Size != 0 {
		return fmt.Errorf("detect.size must be 0, the detector runs at native resolution, got %d", c.Detect.Size)
	}
	for name, t := range map[string]TaskConfig{"classify": c.Classify, "detect": c.Detect, "segment": c.Segment} {
		if t.Model == "" {
			return fmt.Errorf("%s.model must be set", name)
		}
		if t.Labels == "" {
			return fmt.Errorf("%s.labels must be set", name)
		}
		if t.Size < 0 {
			return fmt.Errorf("%s.size must not be negative, got %d", name, t.Size)
		}
	}
	return nil
}

// Package config - This file contains the YAML configuration of the fall detector.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-falldetect/fall"
)

const maxFileSize = 1 << 20

// Ellipse fitter names.
const (
	FitterDirect  = "direct"
	FitterGocv    = "gocv"
	FitterMoments = "moments"
)

// Config is the root configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	History   HistoryConfig   `yaml:"history"`
	Detector  DetectorConfig  `yaml:"detector"`
	Display   DisplayConfig   `yaml:"display"`
	Events    EventsConfig    `yaml:"events"`
	Profiler  ProfilerConfig  `yaml:"profiler"`
	LogLevel  string          `yaml:"log_level"`
}

// SourceConfig selects where frames come from. Video wins over FramesDir, which wins over
// Device.
type SourceConfig struct {
	Video     string  `yaml:"video"`
	Device    int     `yaml:"device"`
	FramesDir string  `yaml:"frames_dir"`
	FPS       float64 `yaml:"fps"`
	Loop      bool    `yaml:"loop"`
	Prefetch  int     `yaml:"prefetch"`
}

// SegmenterConfig tunes background subtraction and region selection.
type SegmenterConfig struct {
	History        int     `yaml:"history"`
	VarThreshold   float64 `yaml:"var_threshold"`
	DetectShadows  bool    `yaml:"detect_shadows"`
	MinContourArea float64 `yaml:"min_contour_area"`
}

// HistoryConfig tunes the motion-history buffer.
type HistoryConfig struct {
	Duration time.Duration `yaml:"duration"`
}

// DetectorConfig tunes the rolling windows and the fall thresholds.
type DetectorConfig struct {
	WindowSize       int           `yaml:"window_size"`
	MinEllipsePoints int           `yaml:"min_ellipse_points"`
	Density          float64       `yaml:"density"`
	AngleStdDev      float64       `yaml:"angle_stddev"`
	AxisRatio        float64       `yaml:"axis_ratio"`
	Stillness        float64       `yaml:"stillness"`
	Recovery         float64       `yaml:"recovery"`
	CandidateTimeout time.Duration `yaml:"candidate_timeout"`
	RetainContour    bool          `yaml:"retain_contour"`
	Fitter           string        `yaml:"fitter"`
}

// DisplayConfig controls the preview windows.
type DisplayConfig struct {
	Show    bool          `yaml:"show"`
	WaitKey time.Duration `yaml:"wait_key"`
}

// EventsConfig controls the event log. An empty Database disables it.
type EventsConfig struct {
	Database      string `yaml:"database"`
	SnapshotDir   string `yaml:"snapshot_dir"`
	SnapshotWidth uint   `yaml:"snapshot_width"`
}

// ProfilerConfig controls the runtime profiler.
type ProfilerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Default returns the tuned configuration.
func Default() Config {
	t := fall.DefaultThresholds()
	return Config{
		Source: SourceConfig{FPS: 30, Loop: true},
		Segmenter: SegmenterConfig{
			History:        20,
			VarThreshold:   16,
			MinContourArea: 500,
		},
		History: HistoryConfig{Duration: 500 * time.Millisecond},
		Detector: DetectorConfig{
			WindowSize:       fall.DefaultWindowSize,
			MinEllipsePoints: fall.DefaultMinEllipsePoints,
			Density:          t.Density,
			AngleStdDev:      t.AngleStdDev,
			AxisRatio:        t.AxisRatio,
			Stillness:        t.Stillness,
			Recovery:         t.Recovery,
			CandidateTimeout: t.CandidateTimeout,
			RetainContour:    true,
			Fitter:           FitterDirect,
		},
		Display:  DisplayConfig{Show: true, WaitKey: 30 * time.Millisecond},
		Events:   EventsConfig{SnapshotWidth: 320},
		Profiler: ProfilerConfig{ReportInterval: 10 * time.Second},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults and validates the result. Keys missing from the
// file keep their default; unknown keys are rejected.
//
// Arguments:
//   - path: A .yaml or .yml file no larger than 1MB.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".yaml" && ext != ".yml" {
		return Config{}, errors.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return Config{}, errors.Wrap(err, "stat config file")
	}
	if info.Size() > maxFileSize {
		return Config{}, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config yaml")
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	switch {
	case c.Source.Prefetch < 0:
		return errors.Errorf("source.prefetch must be non-negative, got %d", c.Source.Prefetch)
	case c.Source.FPS < 0:
		return errors.Errorf("source.fps must be non-negative, got %g", c.Source.FPS)
	case c.Segmenter.History <= 0:
		return errors.Errorf("segmenter.history must be positive, got %d", c.Segmenter.History)
	case c.Segmenter.VarThreshold <= 0:
		return errors.Errorf("segmenter.var_threshold must be positive, got %g", c.Segmenter.VarThreshold)
	case c.Segmenter.MinContourArea < 0:
		return errors.Errorf("segmenter.min_contour_area must be non-negative, got %g", c.Segmenter.MinContourArea)
	case c.History.Duration <= 0:
		return errors.Errorf("history.duration must be positive, got %s", c.History.Duration)
	case c.Detector.WindowSize <= 0:
		return errors.Errorf("detector.window_size must be positive, got %d", c.Detector.WindowSize)
	case c.Detector.MinEllipsePoints < fall.DefaultMinEllipsePoints:
		return errors.Errorf("detector.min_ellipse_points must be at least %d, got %d",
			fall.DefaultMinEllipsePoints, c.Detector.MinEllipsePoints)
	case c.Detector.Density < 0, c.Detector.AngleStdDev < 0, c.Detector.AxisRatio < 0,
		c.Detector.Stillness < 0, c.Detector.Recovery < 0:
		return errors.New("detector thresholds must be non-negative")
	case c.Detector.CandidateTimeout < 0:
		return errors.Errorf("detector.candidate_timeout must be non-negative, got %s", c.Detector.CandidateTimeout)
	case c.Detector.Fitter != FitterDirect && c.Detector.Fitter != FitterGocv && c.Detector.Fitter != FitterMoments:
		return errors.Errorf("detector.fitter must be %q, %q or %q, got %q",
			FitterDirect, FitterGocv, FitterMoments, c.Detector.Fitter)
	case c.Display.WaitKey < 0:
		return errors.Errorf("display.wait_key must be non-negative, got %s", c.Display.WaitKey)
	case c.Profiler.ReportInterval < 0:
		return errors.Errorf("profiler.report_interval must be non-negative, got %s", c.Profiler.ReportInterval)
	}
	return nil
}

// Tracker maps the detector section onto the tracker configuration.
func (c Config) Tracker() fall.TrackerConfig {
	d := c.Detector
	return fall.TrackerConfig{
		WindowSize:       d.WindowSize,
		MinEllipsePoints: d.MinEllipsePoints,
		RetainContour:    d.RetainContour,
		Thresholds: fall.Thresholds{
			Density:          d.Density,
			AngleStdDev:      d.AngleStdDev,
			AxisRatio:        d.AxisRatio,
			Stillness:        d.Stillness,
			Recovery:         d.Recovery,
			CandidateTimeout: d.CandidateTimeout,
		},
	}
}

// Command falldetect watches a video stream and reports human falls.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-falldetect/config"
	"github.com/nvr-ai/go-falldetect/controller"
	"github.com/nvr-ai/go-falldetect/events"
	"github.com/nvr-ai/go-falldetect/fall"
	"github.com/nvr-ai/go-falldetect/images"
	"github.com/nvr-ai/go-falldetect/internal/log"
	"github.com/nvr-ai/go-falldetect/profiler"
	"github.com/nvr-ai/go-falldetect/util"
)

var supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// options holds the command line. Only flags that were set override the config file.
type options struct {
	configPath  string
	video       string
	framesDir   string
	device      int
	loop        bool
	prefetch    int
	show        bool
	fitter      string
	database    string
	snapshotDir string
	profile     bool
	logLevel    string
	listEvents  int

	set map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&o.video, "video", "", "Path to video file (.mp4, .avi, .mov, .mkv)")
	fs.StringVar(&o.framesDir, "frames", "", "Directory of frame-N stills to replay")
	fs.IntVar(&o.device, "device", 0, "Capture device index when no video or frames are given")
	fs.BoolVar(&o.loop, "loop", true, "Restart recorded input at end of stream")
	fs.IntVar(&o.prefetch, "prefetch", 0, "Frames read ahead by the capture goroutine")
	fs.BoolVar(&o.show, "show-window", true, "Show the annotated frame, mask and history windows")
	fs.StringVar(&o.fitter, "fitter", config.FitterDirect, "Ellipse fitter: direct, moments or gocv (whole-pixel output)")
	fs.StringVar(&o.database, "db", "", "SQLite database for fall events")
	fs.StringVar(&o.snapshotDir, "snapshots", "", "Directory for confirmed fall snapshots")
	fs.BoolVar(&o.profile, "profile", false, "Enable the runtime profiler")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.IntVar(&o.listEvents, "list-events", 0, "Print the N most recent events from -db as JSON and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overlays the flags that were set onto cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["video"] {
		cfg.Source.Video = o.video
	}
	if o.set["frames"] {
		cfg.Source.FramesDir = o.framesDir
	}
	if o.set["device"] {
		cfg.Source.Device = o.device
	}
	if o.set["loop"] {
		cfg.Source.Loop = o.loop
	}
	if o.set["prefetch"] {
		cfg.Source.Prefetch = o.prefetch
	}
	if o.set["show-window"] {
		cfg.Display.Show = o.show
	}
	if o.set["fitter"] {
		cfg.Detector.Fitter = o.fitter
	}
	if o.set["db"] {
		cfg.Events.Database = o.database
	}
	if o.set["snapshots"] {
		cfg.Events.SnapshotDir = o.snapshotDir
	}
	if o.set["profile"] {
		cfg.Profiler.Enabled = o.profile
	}
	if o.set["log-level"] {
		cfg.LogLevel = o.logLevel
	}
}

func loadConfig(o *options) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error("falldetect failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(flag.NewFlagSet("falldetect", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log.Init(cfg.LogLevel)

	if opts.listEvents > 0 {
		return listEvents(cfg.Events.Database, opts.listEvents)
	}

	source, err := openSource(cfg.Source)
	if err != nil {
		return err
	}
	defer source.Close()

	segmenter := images.NewForegroundSegmenter(images.SegmenterConfig{
		History:       cfg.Segmenter.History,
		VarThreshold:  cfg.Segmenter.VarThreshold,
		DetectShadows: cfg.Segmenter.DetectShadows,
	})
	defer segmenter.Close()

	history := images.NewMotionHistory(cfg.History.Duration.Seconds())
	defer history.Close()

	tracker := fall.NewTracker(cfg.Tracker(), fitterFor(cfg.Detector.Fitter))

	c := &controller.Controller{
		Source:    source,
		Segmenter: segmenter,
		Contours:  images.ContourFinder{MinArea: cfg.Segmenter.MinContourArea},
		History:   history,
		Tracker:   tracker,
		Loop:      cfg.Source.Loop,
		Prefetch:  cfg.Source.Prefetch,
	}

	if cfg.Display.Show {
		display := images.NewDisplay(cfg.Display.WaitKey, segmenter, history)
		defer display.Close()
		c.Renderer = display
	}

	if cfg.Events.Database != "" {
		store, err := events.OpenStore(cfg.Events.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		var snapshots *events.SnapshotWriter
		if cfg.Events.SnapshotDir != "" {
			snapshots = events.NewSnapshotWriter(cfg.Events.SnapshotDir, cfg.Events.SnapshotWidth)
		}
		c.Events = events.NewRecorder(store, snapshots)
	}

	if cfg.Profiler.Enabled {
		p := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{ReportInterval: cfg.Profiler.ReportInterval})
		p.AddMetricsCollector(tracker)
		p.Start()
		defer p.Stop()
		c.Profiler = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("fall detection started",
		"loop", cfg.Source.Loop,
		"fitter", cfg.Detector.Fitter,
		"window", cfg.Detector.WindowSize,
		"events", cfg.Events.Database != "",
	)
	err = c.Run(ctx)
	log.Info("fall detection stopped", "frames", c.Frames(), "phase", tracker.Phase())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func fitterFor(name string) fall.EllipseFitter {
	switch name {
	case config.FitterMoments:
		return fall.MomentsFitter{}
	case config.FitterGocv:
		return images.EllipseFitter{}
	default:
		return fall.DirectFitter{}
	}
}

func openSource(cfg config.SourceConfig) (controller.FrameSource, error) {
	switch {
	case cfg.Video != "":
		if err := validateFile(cfg.Video, supportedVideoExtensions); err != nil {
			return nil, errors.Wrap(err, "video validation error")
		}
		log.Info("processing video", "path", cfg.Video)
		return images.OpenVideoFile(cfg.Video)
	case cfg.FramesDir != "":
		log.Info("replaying frames", "dir", cfg.FramesDir)
		return util.OpenDirectory(cfg.FramesDir, cfg.FPS)
	default:
		log.Info("capturing from device", "device", cfg.Device)
		return images.OpenDevice(cfg.Device)
	}
}

// validateFile checks if the file exists and has a supported extension.
func validateFile(path string, supported []string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range supported {
		if ext == s {
			return nil
		}
	}
	return errors.Errorf("unsupported file extension: %s. Supported extensions: %v", ext, supported)
}

func listEvents(database string, limit int) error {
	if database == "" {
		return errors.New("-list-events needs -db or events.database")
	}
	store, err := events.OpenStore(database)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.List(context.Background(), limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

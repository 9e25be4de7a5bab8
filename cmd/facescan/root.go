package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teslashibe/facescan/internal/config"
	"github.com/teslashibe/facescan/internal/log"
	"github.com/teslashibe/facescan/pkg/camera"
	"github.com/teslashibe/facescan/pkg/scan"
	"github.com/teslashibe/facescan/pkg/segment"
)

// Version is the application version.
const Version = "0.1.0"

// options is shared by every subcommand and filled in before RunE.
type options struct {
	configPath string
	logLevel   string
	apiBaseURL string
	device     int
	preset     string
	demo       bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "facescan",
		Short:         "Face scan client for the segmentation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (.toml, .yaml, .yml or .json)")
	pf.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&opts.apiBaseURL, "api-base-url", segment.DefaultBaseURL, "Segmentation service base URL (env "+config.EnvAPIBaseURL+")")
	pf.IntVar(&opts.device, "device", 0, "Camera device index")
	pf.StringVar(&opts.preset, "preset", "", "Camera preset: default, legacy, 720p, 1080p")
	pf.BoolVar(&opts.demo, "demo", false, "Use a synthetic camera and an in-process segmentation service")

	root.AddCommand(newServeCmd(opts), newScanCmd(opts), newWatchCmd(opts))
	return root
}

// load layers defaults, the config file, the environment and explicit
// flags, in that order.
func (o *options) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("api-base-url") {
		cfg.APIBaseURL = o.apiBaseURL
	}
	if flags.Changed("device") {
		cfg.Camera.DeviceID = o.device
	}
	if flags.Changed("preset") {
		cfg.Preset = o.preset
	}
	if flags.Changed("demo") {
		cfg.Demo = o.demo
	}

	if err := cfg.ResolveCamera(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(cfg.LogLevel)
	o.cfg = cfg
	o.logger = log.L()
	o.logger.Debug("config loaded", "api_base_url", cfg.APIBaseURL, "camera", cfg.Camera.DeviceID, "demo", cfg.Demo)
	return nil
}

// newSession wires a scan controller to the configured camera and
// segmentation service. The camera manager is returned alongside it.
func (o *options) newSession() (*scan.Controller, *camera.Manager, error) {
	var (
		src camera.Source
		seg scan.Segmenter
	)

	if o.cfg.Demo {
		src = camera.NewMockSource(640, 480)
		seg = segment.NewDemoMock(o.cfg.APIBaseURL)
	} else {
		src = camera.GoCVSource{}
		client, err := segment.NewClient(
			segment.WithBaseURL(o.cfg.APIBaseURL),
			segment.WithLogger(o.logger),
		)
		if err != nil {
			return nil, nil, err
		}
		seg = client
	}

	mgr, err := camera.NewManager(src, o.cfg.Camera, o.logger)
	if err != nil {
		return nil, nil, err
	}

	scanCfg := scan.DefaultConfig()
	scanCfg.Logger = o.logger
	return scan.New(mgr, seg, scanCfg), mgr, nil
}

// Package app wires storage, extraction, judging, live sessions and plugins together.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/vyayama/internal/capture"
	"github.com/ayusman/vyayama/internal/config"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/ayusman/vyayama/internal/matcher"
	"github.com/ayusman/vyayama/internal/plugin"
	"github.com/ayusman/vyayama/internal/store"
	"github.com/ayusman/vyayama/internal/template"
	"github.com/cyclopcam/logs"
)

var (
	// ErrSessionActive is returned when a live session is already using the camera.
	ErrSessionActive = errors.New("a live session is already running")

	// ErrNoSession is returned when there is no live session to stop.
	ErrNoSession = errors.New("no live session")

	// ErrNoVideo is returned when extraction is requested for an exercise without a video.
	ErrNoVideo = errors.New("exercise has no demonstration video")

	// ErrTemplateNotReady is returned when template judging is requested before extraction succeeded.
	ErrTemplateNotReady = errors.New("template not ready")

	// ErrUnknownMode is returned for judging modes other than auto, template, config and coach.
	ErrUnknownMode = errors.New("unknown judging mode")
)

// Config holds the application's collaborators. Zero values fall back to production defaults.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	Log      logs.Log

	// Camera is shared by live sessions, one at a time.
	Camera capture.Camera
	// Detectors creates a pose detector for each session or extraction job.
	Detectors detector.Factory
	// OpenVideo opens demonstration videos for extraction.
	OpenVideo func(path string) (capture.Sampler, error)
}

// App is the main application.
type App struct {
	settings  *config.Config
	store     *store.Store
	log       logs.Log
	camera    capture.Camera
	detectors detector.Factory
	openVideo func(path string) (capture.Sampler, error)

	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	notifier   *plugin.Notifier

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup

	mu      sync.Mutex
	active  *Live
	preview []byte
}

// New creates a new App instance with the given configuration.
func New(cfg Config) *App {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	a := &App{
		settings:  settings,
		store:     cfg.Store,
		log:       cfg.Log,
		camera:    cfg.Camera,
		detectors: cfg.Detectors,
		openVideo: cfg.OpenVideo,
	}
	if a.camera == nil {
		a.camera = capture.NewCamera(settings.Camera.Device)
	}
	if a.detectors == nil {
		a.detectors = detector.NewFactory(settings.DetectorConfig(), settings.Detector.MockFallback)
	}
	if a.openVideo == nil {
		a.openVideo = func(path string) (capture.Sampler, error) { return capture.OpenVideo(path) }
	}

	a.pluginMgr = plugin.NewManager(settings.Plugins.Dir)
	a.pluginExec = plugin.NewExecutor(settings.Plugins.TimeoutMs)
	a.notifier = plugin.NewNotifier(a.pluginMgr, a.pluginExec, a.log)
	a.ctx, a.cancel = context.WithCancel(context.Background())

	// Nothing is extracting yet, so any processing row was left by a process that died.
	if a.store != nil {
		n, err := a.store.Templates().RecoverStale()
		if err != nil {
			a.log.Errorf("Failed to recover interrupted extractions: %v", err)
		} else if n > 0 {
			a.log.Warnf("Marked %d interrupted extractions as failed", n)
		}
	}

	return a
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	a.log.Infof("Discovered %d plugins in %s", len(a.pluginMgr.List()), a.pluginMgr.PluginDir())
	return nil
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Store returns the backing store.
func (a *App) Store() *store.Store {
	return a.store
}

// Settings returns the runtime configuration.
func (a *App) Settings() *config.Config {
	return a.settings
}

// Close stops any live session, cancels running extractions and flushes plugin events.
func (a *App) Close() {
	if live := a.Active(); live != nil {
		live.Stop()
		live.Wait()
	}
	a.cancel()
	a.jobs.Wait()
	a.notifier.Close()
}

// JudgeFor builds the judge for a live session of an exercise.
//
// ModeAuto uses the extracted template when ready and otherwise falls back to the segment
// configuration. Explicit modes fail when their reference data is missing.
func (a *App) JudgeFor(exerciseID string, mode Mode) (matcher.Judge, error) {
	ex, err := a.store.Exercises().GetByID(exerciseID)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeAuto, ModeTemplate:
		doc, err := a.store.Templates().Get(ex.ID)
		if err != nil {
			return nil, err
		}
		if t, err := doc.Template(); err == nil {
			return matcher.NewTemplateJudge(t, a.settings.ExtractionOptions().Definitions,
				a.settings.Live.ConfidenceFloor, a.settings.Live.PartialThreshold)
		}
		if mode == ModeTemplate {
			return nil, fmt.Errorf("%w: status %q", ErrTemplateNotReady, doc.Status)
		}
		a.log.Infof("Exercise %s has no ready template (status %q), judging with segment configuration", ex.Name, doc.Status)
		return a.configJudge(ex)

	case ModeConfig:
		return a.configJudge(ex)

	case ModeCoach:
		keyframes, err := a.store.Templates().Keyframes(ex.ID)
		if err != nil {
			return nil, err
		}
		return matcher.NewCoachJudge(a.settings.NewCoach(), keyframes)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func (a *App) configJudge(ex *store.Exercise) (matcher.Judge, error) {
	cfg, err := a.exerciseConfig(ex)
	if err != nil {
		return nil, err
	}
	m, err := matcher.NewConfigMatcher(cfg, a.settings.Live.ConfidenceFloor)
	if err != nil {
		return nil, err
	}
	return matcher.NewConfigJudge(m), nil
}

// exerciseConfig resolves the segment configuration: the exercise's own, then the configured
// fallback, then the built-in default.
func (a *App) exerciseConfig(ex *store.Exercise) (*matcher.ExerciseConfig, error) {
	for _, path := range []string{ex.ConfigPath, a.settings.Live.ExerciseConfig} {
		if path == "" {
			continue
		}
		cfg, err := matcher.LoadExerciseConfig(path)
		if err != nil {
			return nil, fmt.Errorf("exercise config %s: %w", path, err)
		}
		return cfg, nil
	}
	return matcher.DefaultExerciseConfig(), nil
}

// TemplateDocument returns the persisted template for an exercise.
func (a *App) TemplateDocument(exerciseID string) (*template.Document, error) {
	return a.store.Templates().Get(exerciseID)
}

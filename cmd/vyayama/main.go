package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cheggaaa/pb/v3"
	"github.com/cyclopcam/logs"
	"github.com/google/uuid"

	"github.com/ayusman/vyayama/internal/app"
	"github.com/ayusman/vyayama/internal/capture"
	"github.com/ayusman/vyayama/internal/config"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/ayusman/vyayama/internal/server"
	"github.com/ayusman/vyayama/internal/store"
	"github.com/ayusman/vyayama/internal/template"
	"github.com/ayusman/vyayama/internal/tray"
)

func main() {
	logger, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	parser := argparse.NewParser("vyayama", "Exercise form coach and rep counter")
	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: ""})

	serveCmd := parser.NewCommand("serve", "Run the HTTP server")
	staticDir := serveCmd.String("s", "static", &argparse.Options{Help: "Directory of static web files (default: search for web/)", Default: ""})
	withTray := serveCmd.Flag("t", "tray", &argparse.Options{Help: "Show a system tray menu", Default: false})

	extractCmd := parser.NewCommand("extract", "Extract an exercise template from a demonstration video")
	video := extractCmd.String("v", "video", &argparse.Options{Help: "Demonstration video", Required: true})
	output := extractCmd.String("o", "output", &argparse.Options{Help: "Write the template document here instead of stdout", Default: ""})
	exerciseName := extractCmd.String("e", "exercise", &argparse.Options{Help: "Also store the template for this exercise, creating it if needed", Default: ""})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	switch {
	case extractCmd.Happened():
		err = runExtract(logger, cfg, *video, *output, *exerciseName)
	default:
		err = runServe(logger, cfg, *staticDir, *withTray)
	}
	if err != nil {
		logger.Errorf("%v", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.New(cfg.DBPath())
}

func runServe(logger logs.Log, cfg *config.Config, staticDir string, withTray bool) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	a := app.New(app.Config{Settings: cfg, Store: st, Log: logger})
	defer a.Close()
	if err := a.DiscoverPlugins(); err != nil {
		logger.Warnf("Plugin discovery failed: %v", err)
	}

	if staticDir == "" {
		staticDir = cfg.Server.StaticDir
	}
	if staticDir == "" {
		staticDir = findWebDir(cfg.Storage.DataDir)
	}
	if staticDir != "" {
		logger.Infof("Serving static files from %s", staticDir)
	}

	srv := server.New(server.Config{App: a, StaticDir: staticDir, Log: logger})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if withTray {
		t := tray.New(a.Status)
		t.OnStop(func() {
			if _, err := a.StopSession(); err != nil && !errors.Is(err, app.ErrNoSession) {
				logger.Warnf("Stop session: %v", err)
			}
		})
		t.OnOpen(func() { openBrowser(logger, dashboardURL(cfg.Server.Addr)) })
		go func() {
			select {
			case <-ctx.Done():
			case <-serveErr:
			}
			t.Quit()
		}()
		// The tray owns the main thread until it quits.
		t.Run()
		logger.Infof("Shutting down")
		return nil
	}

	select {
	case <-ctx.Done():
		logger.Infof("Shutting down")
		return nil
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
}

func runExtract(logger logs.Log, cfg *config.Config, videoPath, output, exerciseName string) error {
	sampler, err := capture.OpenVideo(videoPath)
	if err != nil {
		return err
	}
	defer sampler.Close()

	det, err := detector.NewFactory(cfg.DetectorConfig(), cfg.Detector.MockFallback)()
	if err != nil {
		return err
	}
	defer det.Close()

	var bar *pb.ProgressBar
	ex := template.NewExtractor(cfg.ExtractionOptions(), logger)
	ex.OnProgress = func(done, total int) {
		if bar == nil {
			bar = pb.StartNew(total)
		}
		bar.SetCurrent(int64(done))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := ex.Extract(ctx, sampler, det)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", videoPath, err)
	}

	if exerciseName != "" {
		if err := saveTemplate(cfg, exerciseName, videoPath, res); err != nil {
			return err
		}
		logger.Infof("Stored template for %s", exerciseName)
	}

	doc := template.NewDocument(res.Template, template.StatusReady, "")
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if output == "" {
		_, err = fmt.Println(string(data))
		return err
	}
	return os.WriteFile(output, append(data, '\n'), 0644)
}

func saveTemplate(cfg *config.Config, name, videoPath string, res *template.Result) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	e, err := st.Exercises().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		e = &store.Exercise{ID: uuid.New().String(), Name: name, VideoPath: videoPath}
		err = st.Exercises().Create(e)
	}
	if err != nil {
		return fmt.Errorf("exercise %s: %w", name, err)
	}

	started, err := st.Templates().BeginExtraction(e.ID)
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("exercise %s: an extraction is already processing", name)
	}
	return st.Templates().SaveTemplate(e.ID, res.Template, res.Keyframes)
}

func dashboardURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(logger logs.Log, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warnf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

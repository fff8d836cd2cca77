// Command haarlens runs Haar-cascade detection on a camera or a still image
// and serves the annotated output to a browser viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/haarlens/internal/capture"
	"github.com/ayusman/haarlens/internal/config"
	"github.com/ayusman/haarlens/internal/detector"
	"github.com/ayusman/haarlens/internal/logging"
	"github.com/ayusman/haarlens/internal/pipeline"
	"github.com/ayusman/haarlens/internal/server"
	"github.com/ayusman/haarlens/internal/store"
	"github.com/ayusman/haarlens/internal/theme"
	"github.com/ayusman/haarlens/internal/tray"
)

func main() {
	configPath := flag.String("config", config.Path(), "path to the JSON config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	image := flag.String("image", "", "start in file mode with this image")
	live := flag.Int("live", -1, "start live capture on this camera index")
	withTray := flag.Bool("tray", false, "show the system tray menu")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "haarlens: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *withTray {
		cfg.Tray = true
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "haarlens: create data directory: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, Dir: filepath.Join(cfg.DataDir, "logs")})

	if err := run(cfg, log, *image, *live); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("haarlens stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger, image string, live int) error {
	log.WithFields(logrus.Fields{"addr": cfg.Addr, "data_dir": cfg.DataDir, "cascades": cfg.CascadeDir}).Info("starting haarlens")

	var (
		st      *store.Store
		history pipeline.History
		err     error
	)
	if cfg.History {
		st, err = store.New(filepath.Join(cfg.DataDir, "haarlens.db"))
		if err != nil {
			return errors.Wrap(err, "open history store")
		}
		defer st.Close()
		history = st.Recorder()
	}

	classifier := detector.NewCascadeDetector(cfg.CascadeDir, log)
	defer classifier.Close()

	ctrl := pipeline.New(pipeline.Options{
		Cameras:      capture.NewCameraSource(cfg.ProbeSlots),
		Classifier:   classifier,
		History:      history,
		Log:          log,
		LiveInterval: cfg.LiveInterval(),
		FileInterval: cfg.FileInterval(),
		DefaultKind:  detector.Kind(cfg.DefaultClassifier),
		SnapshotDir:  filepath.Join(cfg.DataDir, "snapshots"),
		CameraFPS:    cfg.CameraFPS,
	})

	display := server.NewDisplay(cfg.DisplayWidth, cfg.DisplayHeight, log)
	events := server.NewStatusHub(ctrl.Status, log)
	ctrl.Subscribe(display)
	ctrl.Subscribe(events)

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.WithField("dir", staticDir).Info("serving viewer")
	}

	srv := server.New(server.Config{
		StaticDir:  staticDir,
		Store:      st,
		Controller: ctrl,
		Display:    display,
		Events:     events,
		Stylesheet: theme.Load(cfg.Stylesheet, log),
		Log:        log,
	})

	switch {
	case image != "":
		if err := ctrl.SelectFile(image); err != nil {
			log.WithError(err).WithField("path", image).Warn("initial image not loaded")
		}
	case live >= 0:
		if err := ctrl.SelectLive(live); err != nil {
			log.WithError(err).WithField("device", live).Warn("initial camera not opened")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errc <- ctrl.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		errc <- srv.Run(ctx, cfg.Addr)
	}()

	if cfg.Tray {
		t := newTray(ctrl, cfg.Addr, log, stop)
		ctrl.Subscribe(t)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine on some platforms.
		t.Run()
		stop()
	}

	// The first failure stops the other component.
	first := <-errc
	stop()
	wg.Wait()
	close(errc)

	if first != nil && !errors.Is(first, context.Canceled) {
		return first
	}
	for err := range errc {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	log.Info("haarlens stopped")
	return nil
}

func newTray(ctrl *pipeline.Controller, addr string, log logrus.FieldLogger, quit func()) *tray.Tray {
	t := tray.New()
	t.StatusChanged(ctrl.Status())

	t.OnStart(func() {
		cams := ctrl.Cameras()
		if len(cams) == 0 {
			log.Warn(pipeline.ErrNoCamera.Error())
			return
		}
		if err := ctrl.SelectLive(cams[0]); err != nil {
			log.WithError(err).Warn("start live from tray")
		}
	})
	t.OnStop(func() {
		if err := ctrl.Stop(); err != nil {
			log.WithError(err).Warn("stop from tray")
		}
	})
	t.OnReset(func() {
		if err := ctrl.Reset(); err != nil {
			log.WithError(err).Warn("reset from tray")
		}
	})
	t.OnSnapshot(func() {
		path, err := ctrl.Snapshot("")
		if err != nil {
			log.WithError(err).Warn("snapshot from tray")
			return
		}
		log.WithField("path", path).Info("snapshot saved")
	})
	t.OnOpenViewer(func() {
		if err := openBrowser(viewerURL(addr)); err != nil {
			log.WithError(err).Warn("open viewer")
		}
	})
	t.OnQuit(quit)
	return t
}

// viewerURL turns a listen address into a URL a local browser can open.
func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}

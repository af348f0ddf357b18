// tempscope watches a temperature display through a camera, reads
// the shown value with OCR, and alerts when it crosses a threshold.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tempscope/tempscope/internal/config"
	"github.com/tempscope/tempscope/internal/log"
	"github.com/tempscope/tempscope/pkg/alert"
	"github.com/tempscope/tempscope/pkg/camera"
	"github.com/tempscope/tempscope/pkg/extract"
	"github.com/tempscope/tempscope/pkg/monitor"
	"github.com/tempscope/tempscope/pkg/templog"
	"github.com/tempscope/tempscope/pkg/web"
)

// Index tried when the configured camera fails to open.
const fallbackCameraIndex = 1

func main() {
	// .env is optional; real environment variables win.
	godotenv.Load()

	configPath := flag.String("config", config.Getenv("TEMPSCOPE_CONFIG", config.DefaultPath), "config file path")
	cameraIndex := flag.Int("camera", -1, "camera index override (-1 uses the config value)")
	headless := flag.Bool("headless", false, "run without a preview window")
	logLevel := flag.String("log-level", config.Getenv("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	log.Init(*logLevel)

	command := flag.Arg(0)
	switch command {
	case "help":
		usage()
		return
	case "setup":
		setup()
		return
	case "list":
		listCameras()
		return
	}

	store, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	switch command {
	case "", "run":
		run(store, *cameraIndex, *headless)
	case "select":
		selectCamera(store)
	case "calibrate":
		calibrate(store)
	default:
		// A bare integer is a camera index, kept from the original
		// command line.
		index, err := strconv.Atoi(command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
			usage()
			os.Exit(1)
		}
		run(store, index, *headless)
	}
}

// run wires the collaborators together and drives the poll loop
// until interrupted.
func run(store *config.Store, cameraOverride int, headless bool) {
	cfg := store.Get()
	opts := extract.ParseOptions(cfg.OCRConfig)

	// The OCR engine must be usable before any camera is touched.
	if err := extract.Probe(opts.Language); err != nil {
		log.Error("ocr engine check failed", "error", err)
		fmt.Fprintln(os.Stderr, "Tesseract is not installed or its language data is missing.")
		fmt.Fprintln(os.Stderr, "Run \"tempscope setup\" for installation notes.")
		os.Exit(1)
	}

	extractor, err := extract.New(opts)
	if err != nil {
		log.Error("failed to start ocr engine", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	index := cfg.CameraIndex
	if cameraOverride >= 0 {
		index = cameraOverride
	}
	cam, err := camera.OpenWithFallback(index, fallbackCameraIndex)
	if err != nil {
		log.Error("could not open any camera", "error", err)
		fmt.Fprintln(os.Stderr, "No working camera. If a phone is the camera, start its webcam app first.")
		os.Exit(1)
	}
	// The monitor loop closes the capture on every exit path.

	tlog, err := templog.New(cfg.LogFile)
	if err != nil {
		cam.Close()
		log.Error("failed to open temperature log", "path", cfg.LogFile, "error", err)
		os.Exit(1)
	}
	defer tlog.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	machine := alert.New()
	machine.SetBeeper(alert.NewToneBeeper())

	webhook := alert.NewWebhook(cfg.AlertWebhook)
	machine.SetOnAlert(func(ev alert.Event) {
		if err := tlog.Append(ev.Value, templog.StatusAlert); err != nil {
			log.Warn("alert log write failed", "error", err)
		}
		webhook.Notify(ev)
	})

	mon := monitor.New(store, cam, extractor, machine, tlog)

	if cfg.StatusAddr != "" {
		srv := web.New(cfg.StatusAddr, mon.State, mon.Events)
		tlog.SetMirror(srv.AddLogLine)
		mon.SetOnReading(srv.PushState)
		mon.SetOnFrame(srv.PushFrame)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Warn("dashboard stopped", "error", err)
			}
		}()
	}

	// Pick up config edits made while running.
	if err := store.Watch(ctx, nil); err != nil {
		log.Debug("config watch unavailable", "error", err)
	}

	if cfg.EnablePreview && !headless {
		if err := mon.RunPreview(ctx); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := mon.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func listCameras() {
	devices := camera.List(camera.DefaultProbeLimit)
	if len(devices) == 0 {
		fmt.Println("No cameras found.")
		fmt.Println("If a phone is the camera, make sure its webcam app is running.")
		return
	}
	fmt.Println("Available cameras:")
	for _, d := range devices {
		fmt.Printf("  [%d] %dx%d @ %d fps\n", d.Index, d.Width, d.Height, d.FPS)
	}
}

func selectCamera(store *config.Store) {
	devices := camera.List(camera.DefaultProbeLimit)
	index, err := camera.Choose(devices, os.Stdin, os.Stdout)
	if err != nil {
		log.Error("camera selection failed", "error", err)
		os.Exit(1)
	}

	err = store.Update(func(c *config.Config) {
		c.CameraIndex = index
	})
	if err != nil {
		log.Error("failed to save camera selection", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Saved camera %d to %s\n", index, store.Path())
}

func calibrate(store *config.Store) {
	cfg := store.Get()
	cam, err := camera.OpenWithFallback(cfg.CameraIndex, fallbackCameraIndex)
	if err != nil {
		log.Error("could not open any camera", "error", err)
		os.Exit(1)
	}
	defer cam.Close()

	if err := monitor.Calibrate(store, cam); err != nil {
		log.Error("calibration failed", "error", err)
		os.Exit(1)
	}
}

func setup() {
	fmt.Print(`Phone-as-webcam setup

Option 1 - DroidCam (Android/iOS):
  1. Install the DroidCam app on the phone
  2. Install the DroidCam client on this machine
  3. Connect over WiFi or USB
  4. Run "tempscope list" to find its camera index

Option 2 - Iriun Webcam (Android/iOS):
  1. Install the Iriun Webcam app on the phone
  2. Install the Iriun Webcam client on this machine
  3. Connect over WiFi or USB; it usually shows up as index 0 or 1

OCR engine

  tempscope needs Tesseract with the "eng" language data:
    Debian/Ubuntu: apt install tesseract-ocr libtesseract-dev
    macOS:         brew install tesseract

After setup, point the camera at the temperature display and run
"tempscope calibrate" to mark where the digits are.
`)
}

func usage() {
	fmt.Fprint(os.Stderr, `tempscope - camera temperature monitor

Usage:
  tempscope [flags]             start monitoring
  tempscope [flags] run         start monitoring
  tempscope [flags] <index>     start monitoring on a camera index
  tempscope list                list available cameras
  tempscope select              pick a camera and save it
  tempscope calibrate           pick the display region interactively
  tempscope setup               show camera and OCR setup notes
  tempscope help                show this help

Flags:
  -config path                  config file (default config.json)
  -camera index                 camera index override
  -headless                     run without a preview window
  -log-level level              debug, info, warn or error

Config file keys:
  camera_index                  camera device index (usually 0 or 1)
  temperature_threshold         alert threshold value
  threshold_direction           "above" or "below"
  roi                           region of the frame holding the digits
  alert_cooldown_seconds        minimum seconds between alerts
  status_addr                   dashboard address, e.g. ":8090" (off when empty)
  alert_webhook                 URL receiving alert events as JSON

Preview window keys:
  q                             quit
  r                             reset region to frame center
  c                             save a snapshot
  + / -                         raise / lower threshold by 1
`)
}

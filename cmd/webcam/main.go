// Command webcam runs the face detector on a capture device or video file and
// draws the detections on each frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-face/config"
	"github.com/nvr-ai/go-face/images/cvimage"
	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/logger"
	"github.com/nvr-ai/go-face/models/facedetect"
	"github.com/nvr-ai/go-face/profiler"
)

type flags struct {
	config    string
	device    int
	video     string
	window    bool
	maxFrames int
	report    time.Duration
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "Path to the YAML configuration file")
	flag.IntVar(&f.device, "device", 0, "Capture device ID")
	flag.StringVar(&f.video, "video", "", "Video file to read instead of a capture device")
	flag.BoolVar(&f.window, "window", true, "Show the annotated frames in a window")
	flag.IntVar(&f.maxFrames, "max-frames", 0, "Stop after this many frames, 0 for no limit")
	flag.DurationVar(&f.report, "report", 2*time.Second, "Interval between profiler reports")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, "webcam:", err)
		os.Exit(1)
	}
}

// sessionMetrics exposes inference session counters to the profiler.
func sessionMetrics(stats func() inference.Stats) profiler.CollectorFunc {
	return func() map[string]float64 {
		s := stats()
		return map[string]float64{
			"inference_runs":   float64(s.Runs),
			"inference_avg_ms": float64(s.Average()) / float64(time.Millisecond),
		}
	}
}

// drawFaces renders boxes and landmarks onto frame.
func drawFaces(frame *gocv.Mat, faces []facedetect.Face) {
	for _, face := range faces {
		cvimage.DrawBox(frame, face.Rect(), fmt.Sprintf("%.2f", face.Confidence))
		if face.Landmarks != nil {
			cvimage.DrawPoints(frame, face.Landmarks.Pairs())
		}
	}
}

func openCapture(f flags) (*gocv.VideoCapture, string, error) {
	if f.video != "" {
		capture, err := gocv.OpenVideoCapture(f.video)
		return capture, f.video, errors.Wrapf(err, "failed to open video %s", f.video)
	}
	capture, err := gocv.OpenVideoCapture(f.device)
	return capture, fmt.Sprintf("device %d", f.device), errors.Wrapf(err, "failed to open device %d", f.device)
}

func run(f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := inference.InitializeEnvironment(cfg.LibraryPath); err != nil {
		return err
	}
	defer func() { _ = inference.DestroyEnvironment() }()

	session, err := facedetect.OpenSession(cfg.Models.Detector, cfg.Detector, cfg.Provider, log)
	if err != nil {
		return err
	}
	defer session.Close()

	detector, err := facedetect.NewDetector(session, cfg.Detector, facedetect.WithLogger(log))
	if err != nil {
		return err
	}

	capture, source, err := openCapture(f)
	if err != nil {
		return err
	}
	defer capture.Close()

	var window *gocv.Window
	if f.window {
		window = gocv.NewWindow("Face Detect")
		defer window.Close()
	}

	frame := gocv.NewMat()
	defer frame.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: f.report,
		SampleInterval: 100 * time.Millisecond,
		MaxSamples:     600,
		Logger:         log,
	})
	prof.AddMetricsCollector(sessionMetrics(session.Stats))
	prof.Start()
	defer prof.Stop()

	log.Info("reading frames", zap.String("source", source))
	for n := 0; f.maxFrames == 0 || n < f.maxFrames; n++ {
		if ctx.Err() != nil {
			break
		}
		if ok := capture.Read(&frame); !ok {
			log.Info("capture ended", zap.String("source", source), zap.Int("frames", n))
			break
		}
		if frame.Empty() {
			continue
		}

		stopDetect := prof.StartOperation(profiler.OperationDetect)
		faces, err := detector.DetectMat(ctx, frame)
		stopDetect()
		if err != nil {
			return err
		}
		prof.RecordMetric("faces", float64(len(faces)))
		log.Debug("frame", zap.Int("frame", n), zap.Int("faces", len(faces)))

		stopDraw := prof.StartOperation(profiler.OperationDraw)
		drawFaces(&frame, faces)
		stopDraw()
		prof.FrameDone()

		if window != nil {
			window.IMShow(frame)
			if window.WaitKey(1) == 27 {
				break
			}
		}
	}

	prof.Report()
	stats := session.Stats()
	log.Info("done", zap.Int64("frames", prof.Frames()), zap.Int64("runs", stats.Runs), zap.Duration("average", stats.Average()))

	return nil
}

// Command facedetect finds faces in pictures and optionally runs the face
// attribute models on each detection.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/benchmark"
	"github.com/nvr-ai/go-face/config"
	"github.com/nvr-ai/go-face/images/cvimage"
	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/logger"
	"github.com/nvr-ai/go-face/models/faceattr"
	"github.com/nvr-ai/go-face/models/facedetect"
	"github.com/nvr-ai/go-face/models/model"
	"github.com/nvr-ai/go-face/profiler"
	"github.com/nvr-ai/go-face/util"
)

type flags struct {
	config     string
	image      string
	dir        string
	output     string
	dumpConfig string
	bench      int
	benchOut   string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&f.image, "image", "", "Path to an image file (.jpg, .jpeg, .png, .webp)")
	flag.StringVar(&f.dir, "dir", "", "Directory of image files")
	flag.StringVar(&f.output, "output", "", "Directory for annotated images")
	flag.StringVar(&f.dumpConfig, "dump-config", "", "Write the default configuration to this path and exit")
	flag.IntVar(&f.bench, "bench", 0, "Benchmark the detector for this many iterations per scenario instead of reporting faces")
	flag.StringVar(&f.benchOut, "bench-output", "benchmarks", "Directory for benchmark reports")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, "facedetect:", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	if f.dumpConfig != "" {
		return config.Write(f.dumpConfig, config.DefaultConfig())
	}
	if (f.image == "") == (f.dir == "") {
		return errors.New("exactly one of -image or -dir is required")
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	files, err := loadFiles(f)
	if err != nil {
		return err
	}
	if f.output != "" {
		if err := os.MkdirAll(f.output, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", f.output)
		}
	}

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

	sessions, err := faceattr.OpenSessions(cfg.Models.Attributes(), cfg.Provider, log)
	if err != nil {
		return err
	}
	defer sessions.Close()

	analyzer, err := faceattr.NewAnalyzer(sessions.Runners(), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if f.bench > 0 {
		return runBenchmark(ctx, log, detector, files, f)
	}

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: log})
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := processFile(ctx, log, prof, detector, analyzer, file, f.output); err != nil {
			log.Error("failed to process image", zap.String("path", file.Path), zap.Error(err))
		}
	}
	prof.Report()

	stats := session.Stats()
	log.Info("done",
		zap.Int("images", len(files)),
		zap.Int64("runs", stats.Runs),
		zap.Duration("average", stats.Average()),
	)

	return nil
}

func runBenchmark(ctx context.Context, log *zap.Logger, detector *facedetect.Detector, files []util.ImageFile, f flags) error {
	suite, err := benchmark.NewSuite(detector, files, f.benchOut, log)
	if err != nil {
		return err
	}
	if err := suite.RunAllScenarios(ctx, benchmark.FormatScenarios(f.bench, f.bench/10)); err != nil {
		return err
	}
	_, err = suite.SaveResults()
	return err
}

func loadFiles(f flags) ([]util.ImageFile, error) {
	if f.image != "" {
		file, err := util.LoadImageFile(f.image)
		if err != nil {
			return nil, err
		}
		return []util.ImageFile{file}, nil
	}
	return util.LoadDirectoryImageFiles(f.dir)
}

func processFile(ctx context.Context, log *zap.Logger, prof *profiler.RuntimeProfiler, detector *facedetect.Detector, analyzer *faceattr.Analyzer, file util.ImageFile, output string) error {
	img, err := file.Decode()
	if err != nil {
		return err
	}

	stopDetect := prof.StartOperation(profiler.OperationDetect)
	faces, err := detector.Detect(ctx, img)
	stopDetect()
	if err != nil {
		return err
	}

	log.Info("detected faces",
		zap.String("path", file.Path),
		zap.Int("count", len(faces)),
		zap.Int("best", facedetect.BestFace(faces)),
	)
	for i := range faces {
		fmt.Println(faces[i].String())
		describeFace(ctx, log, analyzer, img, &faces[i])
	}

	prof.FrameDone()

	if output == "" {
		return nil
	}
	defer prof.StartOperation(profiler.OperationDraw)()
	return annotate(img, faces, filepath.Join(output, filepath.Base(file.Path)))
}

// describeFace logs the attributes of every model the analyzer can run.
// A failing model is logged and skipped.
func describeFace(ctx context.Context, log *zap.Logger, analyzer *faceattr.Analyzer, img image.Image, face *facedetect.Face) {
	box := face.Rect()
	fields := []zap.Field{zap.Int("index", face.Index)}
	failed := func(name model.Name, err error) {
		log.Warn("attribute model failed",
			zap.Int("index", face.Index),
			zap.String("model", string(name)),
			zap.Error(err),
		)
	}

	if analyzer.Has(model.ModelNamePose) {
		if pose, err := analyzer.Pose(ctx, img, box); err != nil {
			failed(model.ModelNamePose, err)
		} else {
			fields = append(fields, zap.Any("pose", pose))
		}
	}
	if analyzer.Has(model.ModelNameLiveness) {
		if score, err := analyzer.Liveness(ctx, img, box); err != nil {
			failed(model.ModelNameLiveness, err)
		} else {
			fields = append(fields, zap.Float32("liveness", score))
		}
	}
	if analyzer.Has(model.ModelNameExpression) {
		if expression, err := analyzer.Expression(ctx, img, box); err != nil {
			failed(model.ModelNameExpression, err)
		} else {
			fields = append(fields, zap.Int("expression", expression))
		}
	}
	if analyzer.Has(model.ModelNameGender) {
		if gender, err := analyzer.Gender(ctx, img, box); err != nil {
			failed(model.ModelNameGender, err)
		} else {
			fields = append(fields, zap.Float32("gender", gender))
		}
	}
	if analyzer.Has(model.ModelNameLandmark) {
		points, err := analyzer.Landmarks(ctx, img, box)
		if err != nil {
			failed(model.ModelNameLandmark, err)
		} else {
			if analyzer.Has(model.ModelNameEye) {
				if left, right, err := analyzer.Eyes(ctx, img, points); err != nil {
					failed(model.ModelNameEye, err)
				} else {
					fields = append(fields, zap.Bool("left_eye_open", left), zap.Bool("right_eye_open", right))
				}
			}
			if analyzer.Has(model.ModelNameFeature) {
				if feature, err := analyzer.Feature(ctx, img, points); err != nil {
					failed(model.ModelNameFeature, err)
				} else {
					fields = append(fields, zap.Int("feature_length", len(feature)))
				}
			}
		}
	}

	if len(fields) > 1 {
		log.Info("face attributes", fields...)
	}
}

func annotate(img image.Image, faces []facedetect.Face, path string) error {
	mat, err := cvimage.ImageToMat(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	for _, face := range faces {
		cvimage.DrawBox(&mat, face.Rect(), fmt.Sprintf("%.2f", face.Confidence))
		if face.Landmarks != nil {
			cvimage.DrawPoints(&mat, face.Landmarks.Pairs())
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	}
	return cvimage.WriteImage(path, mat)
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/swdee/go-openpose"
	"github.com/swdee/go-openpose/config"
	"github.com/swdee/go-openpose/onnx"
	"github.com/swdee/go-openpose/postprocess"
	"github.com/swdee/go-openpose/postprocess/result"
	"github.com/swdee/go-openpose/preprocess"
	"github.com/swdee/go-openpose/render"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// frame holds the details of a submitted image needed once its result is
// available
type frame struct {
	file   string
	img    gocv.Mat
	pad    result.Padding
	width  int
	height int
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	configFile := flag.String("c", "", "YAML configuration file, defaults are used if not set")
	imgDir := flag.String("d", "../data/images/", "A directory of images to run pose estimation on")
	saveDir := flag.String("o", "../data/output/", "Directory to save rendered images to")

	flag.Parse()

	cfg, err := config.Load(*configFile)

	if err != nil {
		log.Fatalf("Error loading config: %v\n", err)
	}

	logger, err := newLogger(cfg.Debug)

	if err != nil {
		log.Fatalf("Error creating logger: %v\n", err)
	}

	defer logger.Sync()

	files, err := imageFiles(*imgDir)

	if err != nil {
		logger.Fatal("error reading image directory", zap.Error(err))
	}

	if len(files) == 0 {
		logger.Fatal("no images found", zap.String("dir", *imgDir))
	}

	if err := os.MkdirAll(*saveDir, 0o755); err != nil {
		logger.Fatal("error creating output directory", zap.Error(err))
	}

	decoder, err := postprocess.NewOpenPose(cfg.Decoder)

	if err != nil {
		logger.Fatal("error creating decoder", zap.Error(err))
	}

	decoder.SetUpsampler(preprocess.UpsampleFeatureMaps)

	// a model with a dynamic input width takes the padded width of the first
	// image, all images must then share its aspect ratio
	first := gocv.IMRead(files[0], gocv.IMReadColor)

	if first.Empty() {
		logger.Fatal("error reading image", zap.String("file", files[0]))
	}

	sizing := preprocess.NewResizer(first.Cols(), first.Rows(), cfg.Model.InputWidth,
		cfg.Model.InputHeight, cfg.Decoder.Stride)
	paddedWidth := sizing.PaddedWidth()
	sizing.Close()
	first.Close()

	if err := onnx.InitEnvironment(cfg.Model.LibraryPath); err != nil {
		logger.Fatal("error initializing ONNX Runtime", zap.Error(err))
	}

	defer onnx.DestroyEnvironment()

	exec, err := onnx.NewExecutor(cfg.Model.Path, onnx.Options{
		InputNames:     []string{cfg.Model.InputName},
		OutputNames:    []string{cfg.Decoder.HeatmapOutput, cfg.Decoder.PAFOutput},
		IntraOpThreads: cfg.Model.IntraOpThreads,
		Shapes:         modelShapes(cfg, paddedWidth),
	})

	if err != nil {
		logger.Fatal("error creating executor", zap.Error(err))
	}

	if err := decoder.ValidateModel(exec.InputAttrs(), exec.OutputAttrs()); err != nil {
		logger.Fatal("model does not match decoder topology", zap.Error(err))
	}

	// fixed model dims win over the padded width
	inputWidth := int(exec.InputAttrs()[0].Dims[3])

	if inputWidth != paddedWidth {
		logger.Warn("model input width is fixed, images not padded to it are skipped",
			zap.Int("modelWidth", inputWidth), zap.Int("paddedWidth", paddedWidth))
	}

	pipeline, err := openpose.NewPipeline(exec, cfg.Pipeline, openpose.WithLogger(logger))

	if err != nil {
		logger.Fatal("error creating pipeline", zap.Error(err))
	}

	ctx := context.Background()
	pending := make(map[int64]frame)

	// drain renders all results that are ready, when wait is set it blocks
	// until every submitted frame has been handled
	drain := func(wait bool) {
		for {
			if wait {
				if err := pipeline.WaitForData(ctx); err != nil {
					logger.Fatal("inference failed", zap.Error(err))
				}
			}

			res, err := pipeline.GetResult()

			if err != nil {
				logger.Fatal("inference failed", zap.Error(err))
			}

			if res.IsEmpty() {
				return
			}

			f := pending[res.FrameID]
			delete(pending, res.FrameID)

			processResult(logger, decoder, res, f, *saveDir)
		}
	}

	for _, file := range files {
		f, input, err := prepare(file, cfg, inputWidth)

		if err != nil {
			logger.Warn("skipping image", zap.String("file", file), zap.Error(err))
			continue
		}

		frameID, err := pipeline.Submit(ctx, map[string]*openpose.Tensor{
			cfg.Model.InputName: input,
		})

		if err != nil {
			f.img.Close()
			logger.Fatal("error submitting frame", zap.String("file", file), zap.Error(err))
		}

		pending[frameID] = f

		drain(false)
	}

	drain(true)

	perf := pipeline.PerformanceInfo()

	logger.Info("completed",
		zap.Int64("frames", perf.FramesCount),
		zap.Duration("avgLatency", perf.AverageLatency()),
		zap.Float64("fps", perf.FPS))

	if err := pipeline.Close(); err != nil {
		logger.Error("error closing pipeline", zap.Error(err))
	}
}

// newLogger returns a development logger when debug is set
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

// imageFiles lists the jpg and png files in dir
func imageFiles(dir string) ([]string, error) {

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	return files, nil
}

// modelShapes returns the tensor shapes used to fill in the dynamic dims of
// a model fed images padded to inputWidth
func modelShapes(cfg config.Config, inputWidth int) map[string][]int64 {

	outW := int64(inputWidth / cfg.Decoder.Stride)
	outH := int64(cfg.Model.InputHeight / cfg.Decoder.Stride)

	return map[string][]int64{
		cfg.Model.InputName:       {1, 3, int64(cfg.Model.InputHeight), int64(inputWidth)},
		cfg.Decoder.HeatmapOutput: {1, int64(cfg.Decoder.KeyPointsNumber + 1), outH, outW},
		cfg.Decoder.PAFOutput:     {1, int64(2 * len(cfg.Decoder.Limbs)), outH, outW},
	}
}

// prepare loads an image and converts it into the model input tensor
func prepare(file string, cfg config.Config, inputWidth int) (frame, *openpose.Tensor, error) {

	img := gocv.IMRead(file, gocv.IMReadColor)

	if img.Empty() {
		return frame{}, nil, os.ErrNotExist
	}

	resizer := preprocess.NewResizer(img.Cols(), img.Rows(), cfg.Model.InputWidth,
		cfg.Model.InputHeight, cfg.Decoder.Stride)
	defer resizer.Close()

	if resizer.PaddedWidth() != inputWidth {
		img.Close()
		return frame{}, nil, openpose.ErrShapeMismatch
	}

	resized := gocv.NewMat()
	defer resized.Close()

	resizer.Resize(img, &resized)

	input, err := preprocess.ToTensor(resized, cfg.Model.InputName)

	if err != nil {
		img.Close()
		return frame{}, nil, err
	}

	return frame{
		file:   file,
		img:    img,
		pad:    resizer.Padding(),
		width:  img.Cols(),
		height: img.Rows(),
	}, input, nil
}

// processResult decodes the poses of a frame, renders them and saves the image
func processResult(logger *zap.Logger, decoder *postprocess.OpenPose,
	res openpose.RequestResult, f frame, saveDir string) {

	defer f.img.Close()

	poses, err := decoder.DetectPoses(res, f.pad, f.width, f.height)

	if err != nil {
		logger.Error("error decoding poses", zap.Int64("frame", res.FrameID), zap.Error(err))
		return
	}

	logger.Info("poses detected",
		zap.Int64("frame", res.FrameID),
		zap.String("file", f.file),
		zap.Int("count", len(poses)))

	render.PoseKeyPoints(&f.img, poses, 2)
	render.PoseBoxes(&f.img, poses, render.PoseLabelStyle(), 1)

	out := filepath.Join(saveDir, filepath.Base(f.file))

	if !gocv.IMWrite(out, f.img) {
		logger.Error("error saving image", zap.String("file", out))
	}
}

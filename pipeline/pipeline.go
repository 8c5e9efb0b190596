// Package pipeline runs one uploaded image through decode, detection,
// normalization, annotation and encoding.
package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tutortoise/object-detection-service/annotate"
	"github.com/Tutortoise/object-detection-service/imageio"
	"github.com/Tutortoise/object-detection-service/models"
)

// Detector is the model-facing side of the pipeline. Implementations must be
// safe for concurrent Detect calls.
type Detector interface {
	LabelResolver
	Detect(ctx context.Context, buf *models.PixelBuffer, timings *models.ProcessingTimings) ([]models.RawDetection, error)
}

type Pipeline struct {
	detector Detector
	renderer *annotate.Renderer
	log      *logrus.Logger
}

func New(detector Detector, renderer *annotate.Renderer, log *logrus.Logger) *Pipeline {
	if renderer == nil {
		renderer = annotate.NewRenderer()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		detector: detector,
		renderer: renderer,
		log:      log,
	}
}

// Process runs every stage once, in order. Any stage failure aborts the
// request and no partial result is returned. ctx only bounds waiting for a
// model session; the stages themselves are not interruptible.
func (p *Pipeline) Process(ctx context.Context, data []byte, timings *models.ProcessingTimings) (models.DetectResponse, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}
	start := time.Now()

	decodeStart := time.Now()
	buf, err := imageio.Decode(data)
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		return models.DetectResponse{}, err
	}

	raw, err := p.detector.Detect(ctx, buf, timings)
	if err != nil {
		return models.DetectResponse{}, err
	}

	normStart := time.Now()
	detections, err := Normalize(buf.Width, buf.Height, raw, p.detector)
	timings.Normalize = time.Since(normStart)
	if err != nil {
		return models.DetectResponse{}, err
	}
	if dropped := len(raw) - len(detections); dropped > 0 {
		p.log.WithFields(logrus.Fields{
			"request_id": timings.RequestID,
			"dropped":    dropped,
		}).Warn("Dropped detections with empty boxes after clamping")
	}

	renderStart := time.Now()
	annotated := p.renderer.Render(buf, detections)
	timings.Render = time.Since(renderStart)

	encodeStart := time.Now()
	encoded, err := imageio.Encode(annotated)
	timings.Encode = time.Since(encodeStart)
	if err != nil {
		return models.DetectResponse{}, err
	}

	timings.Total = time.Since(start)

	return Assemble(models.DetectionResult{
		Detections: detections,
		Image:      encoded,
	}), nil
}

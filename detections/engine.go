package detections

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tutortoise/object-detection-service/models"
)

// Engine wraps one loaded detection model and its label table.
//
// Detect is safe for concurrent use. Each call holds one pooled session
// exclusively for the duration of inference, so at most Sessions()
// inferences run at once and further callers wait. With a single session
// (the default) inference is fully serialized across requests. The model
// weights and the label table are read-only after New returns.
type Engine struct {
	pool      *SessionPool
	labels    *LabelTable
	threshold float32
	log       *logrus.Logger
}

type Options struct {
	ModelPath string
	Sessions  int
	Threads   int
	Labels    *LabelTable
	Logger    *logrus.Logger
}

// New loads the model into Sessions sessions and runs one warm-up inference
// on each, so a missing or corrupt model fails here rather than on the first
// request. The ONNX environment must already be initialized.
func New(opts Options) (*Engine, error) {
	factory := func() (Runner, error) {
		return NewModelSession(opts.ModelPath, opts.Threads)
	}
	return NewWithFactory(factory, opts.Sessions, opts.Labels, opts.Logger)
}

func NewWithFactory(factory SessionFactory, sessions int, labels *LabelTable, log *logrus.Logger) (*Engine, error) {
	if labels == nil {
		labels = COCOLabels()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	pool, err := NewSessionPool(factory, sessions, log)
	if err != nil {
		return nil, fmt.Errorf("create session pool: %w", err)
	}

	e := &Engine{
		pool:      pool,
		labels:    labels,
		threshold: ConfThreshold,
		log:       log,
	}

	if err := e.warmUp(); err != nil {
		pool.Destroy()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"sessions": pool.Size(),
		"classes":  labels.Len(),
	}).Info("Detection engine ready")

	return e, nil
}

func (e *Engine) warmUp() error {
	inputPtr := inputPool.Get().(*[]float32)
	defer inputPool.Put(inputPtr)
	input := *inputPtr
	for i := range input {
		input[i] = 0
	}

	held := make([]Runner, 0, e.pool.Size())
	defer func() {
		for _, s := range held {
			e.pool.Release(s, true)
		}
	}()

	for i := 0; i < e.pool.Size(); i++ {
		session, err := e.pool.Acquire(context.Background())
		if err != nil {
			return fmt.Errorf("warm-up acquire: %w", err)
		}
		held = append(held, session)

		out, err := session.Run(input)
		if err != nil {
			return fmt.Errorf("warm-up inference: %w", err)
		}
		if len(out)%(4+e.labels.Len()) != 0 {
			return fmt.Errorf("model output size %d does not fit %d classes", len(out), e.labels.Len())
		}
	}
	return nil
}

// Detect runs the model over buf and returns raw detections in emission
// order: descending confidence after non-maximum suppression. Boxes are in
// buf's pixel space and may extend past its edges.
func (e *Engine) Detect(ctx context.Context, buf *models.PixelBuffer, timings *models.ProcessingTimings) ([]models.RawDetection, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}

	lbStart := time.Now()
	fitted, lb := letterboxImage(buf)
	inputPtr := inputPool.Get().(*[]float32)
	defer inputPool.Put(inputPtr)
	fillInput(fitted, *inputPtr)
	timings.Letterbox = time.Since(lbStart)

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	inferStart := time.Now()
	output, err := session.Run(*inputPtr)
	e.pool.Release(session, err == nil)
	timings.Inference = time.Since(inferStart)
	if err != nil {
		return nil, &models.InferenceError{Message: "model inference", Cause: err}
	}

	postStart := time.Now()
	candidates, err := processPredictions(output, e.labels.Len(), lb, e.threshold)
	if err != nil {
		return nil, &models.InferenceError{Message: "process predictions", Cause: err}
	}
	kept := nonMaxSuppression(candidates, IouThreshold, MaxDetections)
	timings.Postprocess = time.Since(postStart)

	raw := make([]models.RawDetection, len(kept))
	for i, c := range kept {
		raw[i] = models.RawDetection{
			ClassID:    c.classID,
			Confidence: c.score,
			Box:        c.box,
		}
	}
	return raw, nil
}

func (e *Engine) LabelFor(classID int) (string, error) {
	return e.labels.LabelFor(classID)
}

func (e *Engine) Labels() *LabelTable {
	return e.labels
}

func (e *Engine) Sessions() int {
	return e.pool.Size()
}

func (e *Engine) Stats() PoolStats {
	return e.pool.Stats()
}

func (e *Engine) Close() {
	e.pool.Destroy()
}

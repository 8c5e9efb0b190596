package detections

import (
	"errors"
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// Runner is one inference session. A Runner is not safe for concurrent use;
// the pool hands each one to a single caller at a time.
type Runner interface {
	Run(input []float32) ([]float32, error)
	Destroy()
}

type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// NewModelSession loads the YOLOv8 graph at modelPath with fixed input and
// output bindings. threads <= 0 means one intra-op thread per CPU.
func NewModelSession(modelPath string, threads int) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}

	inputShape := ort.NewShape(1, 3, InputHeight, InputWidth)
	outputShape := ort.NewShape(1, 4+NumClasses, numAnchors())

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{InputName},
		[]string{OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &ModelSession{
		Session: session,
		Input:   inputTensor,
		Output:  outputTensor,
	}, nil
}

// Run returns a copy of the output tensor so the session can be reused as
// soon as it is released.
func (m *ModelSession) Run(input []float32) ([]float32, error) {
	if m.Session == nil {
		return nil, errors.New("session not initialized")
	}

	dst := m.Input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input length %d does not match tensor size %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := m.Session.Run(); err != nil {
		return nil, err
	}

	out := m.Output.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
}

// numAnchors is the number of candidate boxes the YOLOv8 head emits for the
// fixed input size: strides 8, 16 and 32.
func numAnchors() int64 {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		n += (InputWidth / stride) * (InputHeight / stride)
	}
	return int64(n)
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tutortoise/object-detection-service/models"
)

var testLabels = []string{"person", "bicycle", "car"}

type fakeDetector struct {
	mu    sync.Mutex
	raw   []models.RawDetection
	err   error
	calls int
}

func (f *fakeDetector) Detect(ctx context.Context, buf *models.PixelBuffer, timings *models.ProcessingTimings) ([]models.RawDetection, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.RawDetection, len(f.raw))
	copy(out, f.raw)
	return out, nil
}

func (f *fakeDetector) LabelFor(classID int) (string, error) {
	if classID < 0 || classID >= len(testLabels) {
		return "", &models.UnknownClassError{ClassID: classID, NumClasses: len(testLabels)}
	}
	return testLabels[classID], nil
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDataURI(t *testing.T, uri string) image.Image {
	t.Helper()
	const prefix = "data:image/jpeg;base64,"
	require.True(t, strings.HasPrefix(uri, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestRoundConfidence(t *testing.T) {
	cases := []struct {
		in   float32
		want float64
	}{
		{0.914, 0.91},
		{0.875, 0.88},
		{0.254, 0.25},
		{1.2, 1},
		{-0.1, 0},
		{float32(math.NaN()), 0},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, RoundConfidence(c.in), 1e-9, "input %v", c.in)
	}
}

func TestNormalizeClampsAndPreservesOrder(t *testing.T) {
	raw := []models.RawDetection{
		{ClassID: 2, Confidence: 0.9, Box: [4]float32{-12.5, 10.9, 99.7, 205}},
		{ClassID: 0, Confidence: 0.6, Box: [4]float32{20.2, 30.8, 40.1, 50.99}},
		{ClassID: 1, Confidence: 0.4, Box: [4]float32{150, 10, 170, 20}},
	}

	dets, err := Normalize(100, 200, raw, &fakeDetector{})
	require.NoError(t, err)
	require.Len(t, dets, 3)

	assert.Equal(t, "car", dets[0].Label)
	assert.Equal(t, [4]int{0, 10, 99, 199}, dets[0].BBox)
	assert.Equal(t, "person", dets[1].Label)
	assert.Equal(t, [4]int{20, 30, 40, 50}, dets[1].BBox)
	// Fully right of the image: collapses onto the last column.
	assert.Equal(t, [4]int{99, 10, 99, 20}, dets[2].BBox)

	for _, d := range dets {
		assert.GreaterOrEqual(t, d.BBox[0], 0)
		assert.LessOrEqual(t, d.BBox[0], d.BBox[2])
		assert.LessOrEqual(t, d.BBox[1], d.BBox[3])
		assert.Less(t, d.BBox[2], 100)
		assert.Less(t, d.BBox[3], 200)
	}
}

func TestNormalizeDropsInvalidBoxes(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	raw := []models.RawDetection{
		{ClassID: 0, Confidence: 0.9, Box: [4]float32{nan, 0, 10, 10}},
		{ClassID: 0, Confidence: 0.8, Box: [4]float32{0, 0, inf, 10}},
		{ClassID: 0, Confidence: 0.7, Box: [4]float32{50, 0, 10, 10}},
		{ClassID: 1, Confidence: 0.6, Box: [4]float32{1, 1, 5, 5}},
	}

	dets, err := Normalize(64, 64, raw, &fakeDetector{})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "bicycle", dets[0].Label)
}

func TestNormalizeKeepsEdgeCollapsedBoxes(t *testing.T) {
	raw := []models.RawDetection{
		{ClassID: 2, Confidence: 0.5, Box: [4]float32{700, 500, 900, 800}},
		{ClassID: 0, Confidence: 0.4, Box: [4]float32{-50, -40, -10, -5}},
	}

	dets, err := Normalize(640, 480, raw, &fakeDetector{})
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, [4]int{639, 479, 639, 479}, dets[0].BBox)
	assert.Equal(t, [4]int{0, 0, 0, 0}, dets[1].BBox)
}

func TestNormalizeUnknownClass(t *testing.T) {
	raw := []models.RawDetection{{ClassID: 7, Confidence: 0.5, Box: [4]float32{0, 0, 1, 1}}}

	_, err := Normalize(10, 10, raw, &fakeDetector{})
	var unknown *models.UnknownClassError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 7, unknown.ClassID)
}

func TestAssembleEmptyDetections(t *testing.T) {
	resp := Assemble(models.DetectionResult{Image: models.EncodedImage{DataURI: "data:image/jpeg;base64,AA=="}})
	assert.NotNil(t, resp.DetectedObjects)
	assert.Empty(t, resp.DetectedObjects)
	assert.Equal(t, "data:image/jpeg;base64,AA==", resp.ProcessedImage)
}

func TestProcessBlackImageNoDetections(t *testing.T) {
	p := New(&fakeDetector{}, nil, nil)
	timings := &models.ProcessingTimings{RequestID: "req-1"}

	resp, err := p.Process(context.Background(), pngBytes(t, 64, 48, color.Black), timings)
	require.NoError(t, err)
	assert.NotNil(t, resp.DetectedObjects)
	assert.Empty(t, resp.DetectedObjects)

	img := decodeDataURI(t, resp.ProcessedImage)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
	assert.Positive(t, timings.Total)
}

func TestProcessAnnotatesDetections(t *testing.T) {
	det := &fakeDetector{raw: []models.RawDetection{
		{ClassID: 2, Confidence: 0.876, Box: [4]float32{40, 60, 120, 140}},
		{ClassID: 0, Confidence: 0.5, Box: [4]float32{-5, -5, 300, 300}},
	}}
	p := New(det, nil, nil)

	resp, err := p.Process(context.Background(), pngBytes(t, 200, 160, color.White), nil)
	require.NoError(t, err)
	require.Len(t, resp.DetectedObjects, 2)

	assert.Equal(t, models.Detection{Label: "car", Confidence: 0.88, BBox: [4]int{40, 60, 120, 140}}, resp.DetectedObjects[0])
	assert.Equal(t, models.Detection{Label: "person", Confidence: 0.5, BBox: [4]int{0, 0, 199, 159}}, resp.DetectedObjects[1])

	img := decodeDataURI(t, resp.ProcessedImage)
	assert.Equal(t, image.Rect(0, 0, 200, 160), img.Bounds())

	// JPEG is lossy; the box edge should still read as strongly green.
	r, g, b, _ := img.At(40, 100).RGBA()
	assert.Greater(t, g>>8, uint32(150))
	assert.Less(t, r>>8, uint32(128))
	assert.Less(t, b>>8, uint32(128))
}

func TestProcessDecodeFailure(t *testing.T) {
	det := &fakeDetector{}
	p := New(det, nil, nil)

	_, err := p.Process(context.Background(), []byte("not an image"), nil)
	var decodeErr *models.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Zero(t, det.calls)
}

func TestProcessDetectorFailure(t *testing.T) {
	cause := errors.New("session exploded")
	p := New(&fakeDetector{err: &models.InferenceError{Message: "model inference", Cause: cause}}, nil, nil)

	resp, err := p.Process(context.Background(), pngBytes(t, 8, 8, color.White), nil)
	require.ErrorIs(t, err, cause)
	assert.Empty(t, resp.ProcessedImage)
}

func TestProcessLogsDroppedDetections(t *testing.T) {
	log, hook := test.NewNullLogger()
	det := &fakeDetector{raw: []models.RawDetection{
		{ClassID: 0, Confidence: 0.9, Box: [4]float32{30, 0, 10, 10}},
	}}
	p := New(det, nil, log)

	resp, err := p.Process(context.Background(), pngBytes(t, 16, 16, color.White), &models.ProcessingTimings{RequestID: "abc"})
	require.NoError(t, err)
	assert.Empty(t, resp.DetectedObjects)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "abc", entry.Data["request_id"])
}

// sizedDetector reports one box covering the top-left quarter of whatever
// buffer it is given, so each request's result depends on its own input.
type sizedDetector struct{}

func (sizedDetector) Detect(ctx context.Context, buf *models.PixelBuffer, timings *models.ProcessingTimings) ([]models.RawDetection, error) {
	classID := 0
	if buf.Width > buf.Height {
		classID = 2
	}
	return []models.RawDetection{{
		ClassID:    classID,
		Confidence: 0.7,
		Box:        [4]float32{0, 0, float32(buf.Width / 2), float32(buf.Height / 2)},
	}}, nil
}

func (sizedDetector) LabelFor(classID int) (string, error) {
	return (&fakeDetector{}).LabelFor(classID)
}

func TestProcessConcurrentRequests(t *testing.T) {
	p := New(sizedDetector{}, nil, nil)

	inputs := []struct {
		w, h  int
		label string
	}{
		{64, 32, "car"},
		{48, 96, "person"},
	}
	images := make([][]byte, len(inputs))
	for i, in := range inputs {
		images[i] = pngBytes(t, in.w, in.h, color.White)
	}

	const rounds = 8
	var wg sync.WaitGroup
	results := make([]models.DetectResponse, rounds*len(inputs))
	errs := make([]error, len(results))
	for r := 0; r < rounds; r++ {
		for i := range inputs {
			wg.Add(1)
			go func(slot, input int) {
				defer wg.Done()
				results[slot], errs[slot] = p.Process(context.Background(), images[input], nil)
			}(r*len(inputs)+i, i)
		}
	}
	wg.Wait()

	for slot, resp := range results {
		in := inputs[slot%len(inputs)]
		require.NoError(t, errs[slot])
		require.Len(t, resp.DetectedObjects, 1)

		det := resp.DetectedObjects[0]
		assert.Equal(t, in.label, det.Label)
		assert.Equal(t, [4]int{0, 0, in.w / 2, in.h / 2}, det.BBox)

		img := decodeDataURI(t, resp.ProcessedImage)
		assert.Equal(t, image.Rect(0, 0, in.w, in.h), img.Bounds())
	}
}

package models

import "time"

// RawDetection is one object instance as emitted by the engine. Box is
// x1, y1, x2, y2 in pixel-buffer coordinates and is not guaranteed to lie
// inside the buffer.
type RawDetection struct {
	ClassID    int
	Confidence float32
	Box        [4]float32
}

// Detection is the canonical record returned to clients.
type Detection struct {
	Label      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

// EncodedImage is a compressed image plus its self-describing text form.
type EncodedImage struct {
	Bytes     []byte
	MediaType string
	DataURI   string
}

// DetectionResult is the pipeline output before packaging.
type DetectionResult struct {
	Detections []Detection
	Image      EncodedImage
}

type DetectResponse struct {
	DetectedObjects []Detection `json:"detected_objects"`
	ProcessedImage  string      `json:"processed_image"`
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Letterbox   time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Normalize   time.Duration
	Render      time.Duration
	Encode      time.Duration
	Total       time.Duration
}

package pipeline

import "github.com/Tutortoise/object-detection-service/models"

// Assemble packages a finished result for transport. A nil detection list is
// sent as an empty array.
func Assemble(result models.DetectionResult) models.DetectResponse {
	detections := result.Detections
	if detections == nil {
		detections = []models.Detection{}
	}
	return models.DetectResponse{
		DetectedObjects: detections,
		ProcessedImage:  result.Image.DataURI,
	}
}

package detections

import "time"

const (
	InputWidth    = 640
	InputHeight   = 640
	NumClasses    = 80
	ConfThreshold = 0.25
	IouThreshold  = 0.7
	MaxDetections = 300
	LetterboxFill = 114

	InputName  = "images"
	OutputName = "output0"
)

const (
	// DefaultPoolSize Pool configuration
	DefaultPoolSize   = 1
	AcquireTimeout    = 5 * time.Second
	HealthCheckPeriod = 60 * time.Second
)

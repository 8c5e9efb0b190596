package detections

import "github.com/Tutortoise/object-detection-service/models"

var cocoNames = [NumClasses]string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// LabelTable maps class ids to names. It is built once and never mutated, so
// a single table is shared by every request.
type LabelTable struct {
	names []string
}

func NewLabelTable(names []string) *LabelTable {
	owned := make([]string, len(names))
	copy(owned, names)
	return &LabelTable{names: owned}
}

// COCOLabels is the label set the stock YOLOv8 weights were trained on.
func COCOLabels() *LabelTable {
	return NewLabelTable(cocoNames[:])
}

func (t *LabelTable) Len() int {
	return len(t.names)
}

func (t *LabelTable) LabelFor(classID int) (string, error) {
	if classID < 0 || classID >= len(t.names) {
		return "", &models.UnknownClassError{ClassID: classID, NumClasses: len(t.names)}
	}
	return t.names[classID], nil
}

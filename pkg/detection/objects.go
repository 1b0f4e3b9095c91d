package detection

// ObjectDetection represents a detected object with class info
type ObjectDetection struct {
	Detection
	ClassID   int    `json:"class_id"`   // COCO class ID
	ClassName string `json:"class_name"` // Human-readable class name
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

var animals = map[string]bool{
	"bird": true, "cat": true, "dog": true, "horse": true, "sheep": true,
	"cow": true, "elephant": true, "bear": true, "zebra": true, "giraffe": true,
}

var vehicles = map[string]bool{
	"bicycle": true, "car": true, "motorcycle": true, "bus": true, "truck": true,
}

// IsAnimal returns true if the class is an animal
func IsAnimal(className string) bool {
	return animals[className]
}

// IsPerson returns true if the class is a person
func IsPerson(className string) bool {
	return className == "person"
}

// IsVehicle returns true if the class is a road vehicle
func IsVehicle(className string) bool {
	return vehicles[className]
}

package vision

// Coverage returns the percentage (0-100) of the frame covered by face boxes.
// Boxes are summed as-is; overlapping faces are counted twice.
func Coverage(faces []DetectedFace) float64 {
	total := 0.0
	for _, f := range faces {
		total += f.BoundingBox.Area()
	}
	return total * 100
}

// AverageConfidence returns the mean detection confidence, or 0 for no faces.
func AverageConfidence(faces []DetectedFace) float64 {
	if len(faces) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range faces {
		sum += f.Confidence
	}
	return sum / float64(len(faces))
}

// BoxFromPixels converts a pixel bbox [x1, y1, x2, y2] to a relative BoundingBox.
// Malformed input yields a zero box.
func BoxFromPixels(bbox []float64, width, height int) BoundingBox {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return BoundingBox{}
	}
	x1 := clamp01(bbox[0] / float64(width))
	y1 := clamp01(bbox[1] / float64(height))
	x2 := clamp01(bbox[2] / float64(width))
	y2 := clamp01(bbox[3] / float64(height))
	if x2 < x1 || y2 < y1 {
		return BoundingBox{}
	}
	return BoundingBox{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

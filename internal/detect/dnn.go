package detect

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/eyu/animal-counter/internal/config"
	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/video"
)

// dnnDetector runs an SSD-style network through the OpenCV DNN module.
// Output rows follow the [batch_id, class_id, confidence, x1, y1, x2, y2]
// layout with normalized coordinates.
type dnnDetector struct {
	net        gocv.Net
	classes    classSet
	confidence float64
	inputSize  int
}

func newDNNDetector(cfg *config.DetectorConfig, classes classSet) (*dnnDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, domain.ResourceError(fmt.Errorf("model file not found: %s", cfg.ModelPath))
	}
	if _, err := os.Stat(cfg.ConfigPath); os.IsNotExist(err) {
		return nil, domain.ResourceError(fmt.Errorf("model config file not found: %s", cfg.ConfigPath))
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, domain.ResourceError(fmt.Errorf("failed to load network from %s", cfg.ModelPath))
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, domain.ResourceError(fmt.Errorf("set network backend: %w", err))
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, domain.ResourceError(fmt.Errorf("set network target: %w", err))
	}

	inputSize := cfg.InputSize
	if inputSize <= 0 {
		inputSize = 300
	}

	return &dnnDetector{
		net:        net,
		classes:    classes,
		confidence: cfg.Confidence,
		inputSize:  inputSize,
	}, nil
}

func (d *dnnDetector) Classes() []string {
	return d.classes.labels()
}

// Detect decodes the frame, runs the network and keeps detections whose
// class is in this variant's allowlist and whose confidence clears the
// configured threshold.
func (d *dnnDetector) Detect(frame video.Frame) ([]domain.Detection, error) {
	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, domain.InputError(fmt.Errorf("decode frame %d: %w", frame.Index, err))
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, domain.InputError(fmt.Errorf("frame %d decoded empty", frame.Index))
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	imgWidth := float32(mat.Cols())
	imgHeight := float32(mat.Rows())

	var results []domain.Detection

	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := float64(reshaped.GetFloatAt(i, 2))
		if confidence <= d.confidence {
			continue
		}

		classID := int(reshaped.GetFloatAt(i, 1))
		label, ok := d.classes[classID]
		if !ok {
			continue
		}

		x := int(reshaped.GetFloatAt(i, 3) * imgWidth)
		y := int(reshaped.GetFloatAt(i, 4) * imgHeight)
		width := int(reshaped.GetFloatAt(i, 5)*imgWidth) - x
		height := int(reshaped.GetFloatAt(i, 6)*imgHeight) - y

		results = append(results, domain.Detection{
			FrameIndex: frame.Index,
			Class:      label,
			Confidence: confidence,
			Box:        domain.Rect{X: x, Y: y, Width: width, Height: height},
		})
	}

	return results, nil
}

// Close releases the underlying network.
func (d *dnnDetector) Close() error {
	return d.net.Close()
}

package predictor

import (
	"fmt"

	"github.com/vitalsense/mlserve/internal/model"
)

// Device identifies where tensor computation runs.
type Device string

const (
	DeviceCPU         Device = "cpu"
	DeviceAccelerator Device = "accelerator"
)

// Tensor is the numeric representation tensor-network models compute on.
type Tensor struct {
	Values []float64
	Device Device
}

// TensorFrom copies a plain numeric vector into a tensor on the given device.
func TensorFrom(values []float64, device Device) Tensor {
	out := make([]float64, len(values))
	copy(out, values)
	return Tensor{Values: out, Device: device}
}

// Slice detaches the tensor into a plain numeric sequence.
func (t Tensor) Slice() []float64 {
	out := make([]float64, len(t.Values))
	copy(out, t.Values)
	return out
}

// Layer is one fully connected layer: Weights is out x in.
type Layer struct {
	Weights [][]float64
	Biases  []float64
}

// Network is a small fully connected feed-forward network with ReLU hidden
// activations and an identity output layer.
type Network struct {
	Layers      []Layer
	Accelerated bool

	training bool
	device   Device
}

// InputDim returns the expected feature vector length.
func (n *Network) InputDim() int {
	if len(n.Layers) == 0 || len(n.Layers[0].Weights) == 0 {
		return 0
	}
	return len(n.Layers[0].Weights[0])
}

// Eval switches the network to inference mode; no gradient state is tracked
// afterwards.
func (n *Network) Eval() {
	n.training = false
}

// To places the network on a device. A no-op when the device is unchanged.
func (n *Network) To(device Device) {
	n.device = device
}

// GPUCompatible reports whether the network was trained for accelerator use.
func (n *Network) GPUCompatible() bool {
	return n.Accelerated
}

// Forward runs the forward computation over a single-sample tensor.
func (n *Network) Forward(t Tensor) (Tensor, error) {
	if len(n.Layers) == 0 {
		return Tensor{}, fmt.Errorf("%w: network has no layers", model.ErrUnsupported)
	}
	if dim := n.InputDim(); len(t.Values) != dim {
		return Tensor{}, fmt.Errorf("%w: expected %d features, got %d", model.ErrValidation, dim, len(t.Values))
	}

	values := t.Values
	for li, layer := range n.Layers {
		out := make([]float64, len(layer.Weights))
		for i, row := range layer.Weights {
			if len(row) != len(values) {
				return Tensor{}, fmt.Errorf("%w: layer %d expects %d inputs, got %d", model.ErrSerialization, li, len(row), len(values))
			}
			sum := layer.Biases[i]
			for j, w := range row {
				sum += w * values[j]
			}
			// ReLU on hidden layers, identity on the output layer.
			if li < len(n.Layers)-1 && sum < 0 {
				sum = 0
			}
			out[i] = sum
		}
		values = out
	}

	return Tensor{Values: values, Device: t.Device}, nil
}

// Predict conforms the network to the Predictor capability: forward on the
// current device, result detached to a plain slice.
func (n *Network) Predict(input []float64) ([]float64, error) {
	out, err := n.Forward(TensorFrom(input, n.device))
	if err != nil {
		return nil, err
	}
	return out.Slice(), nil
}

// StateDict returns the named tensor dictionary of the network.
func (n *Network) StateDict() map[string][]float64 {
	state := make(map[string][]float64, len(n.Layers)*2)
	for i, layer := range n.Layers {
		flat := make([]float64, 0, len(layer.Weights)*len(layer.Biases))
		for _, row := range layer.Weights {
			flat = append(flat, row...)
		}
		state[fmt.Sprintf("layers.%d.weight", i)] = flat
		state[fmt.Sprintf("layers.%d.bias", i)] = layer.Biases
	}
	return state
}

package model

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gonum.org/v1/gonum/mat"
)

type activation func(float64) float64

var activations = map[string]activation{
	"":        identity,
	"linear":  identity,
	"relu":    relu,
	"tanh":    math.Tanh,
	"sigmoid": sigmoid,
}

func identity(v float64) float64 { return v }

func relu(v float64) float64 { return math.Max(0, v) }

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// denseArtifact is the on-disk form of a fully connected autoencoder.
// Weights are stored (in, out), the same layout Keras uses for kernels.
type denseArtifact struct {
	Manifest Manifest     `json:"manifest"`
	Layers   []denseLayer `json:"layers"`
}

type denseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

type layer struct {
	weights *mat.Dense
	bias    []float64
	act     activation
}

// DenseAutoencoder runs a stack of dense layers. It is immutable once
// loaded, so concurrent Predict calls need no locking.
type DenseAutoencoder struct {
	manifest Manifest
	layers   []layer
}

func LoadDenseFile(path string) (*DenseAutoencoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()

	return LoadDense(f)
}

func LoadDense(r io.Reader) (*DenseAutoencoder, error) {
	var artifact denseArtifact
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	return newDense(artifact)
}

func newDense(artifact denseArtifact) (*DenseAutoencoder, error) {
	if len(artifact.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidModel)
	}

	layers := make([]layer, len(artifact.Layers))
	width := 0
	for i, l := range artifact.Layers {
		in := len(l.Weights)
		if in == 0 || len(l.Weights[0]) == 0 {
			return nil, fmt.Errorf("%w: layer %d has no weights", ErrInvalidModel, i)
		}
		out := len(l.Weights[0])
		if i > 0 && in != width {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous layer emits %d", ErrInvalidModel, i, in, width)
		}
		if len(l.Bias) != out {
			return nil, fmt.Errorf("%w: layer %d bias has %d values, want %d", ErrInvalidModel, i, len(l.Bias), out)
		}
		act, ok := activations[strings.ToLower(l.Activation)]
		if !ok {
			return nil, fmt.Errorf("%w: layer %d has unsupported activation %q", ErrInvalidModel, i, l.Activation)
		}

		data := make([]float64, 0, in*out)
		for r, row := range l.Weights {
			if len(row) != out {
				return nil, fmt.Errorf("%w: layer %d weight row %d has %d values, want %d", ErrInvalidModel, i, r, len(row), out)
			}
			data = append(data, row...)
		}

		layers[i] = layer{weights: mat.NewDense(in, out, data), bias: l.Bias, act: act}
		width = out
	}

	inputDim, _ := layers[0].weights.Dims()
	if width != inputDim {
		return nil, fmt.Errorf("%w: output width %d does not reconstruct input width %d", ErrInvalidModel, width, inputDim)
	}

	manifest := artifact.Manifest
	if manifest.InputDim == 0 {
		manifest.InputDim = inputDim
	}
	if manifest.InputDim != inputDim {
		return nil, fmt.Errorf("%w: manifest input_dim %d, first layer takes %d", ErrInvalidModel, manifest.InputDim, inputDim)
	}

	return &DenseAutoencoder{manifest: manifest, layers: layers}, nil
}

func (m *DenseAutoencoder) Loaded() bool {
	return m != nil && len(m.layers) > 0
}

func (m *DenseAutoencoder) Manifest() Manifest {
	return m.manifest
}

func (m *DenseAutoencoder) Predict(batch *mat.Dense) (*mat.Dense, error) {
	if !m.Loaded() {
		return nil, ErrNotLoaded
	}
	if _, c := batch.Dims(); c != m.manifest.InputDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, c, m.manifest.InputDim)
	}

	var h mat.Matrix = batch
	for _, l := range m.layers {
		var next mat.Dense
		next.Mul(h, l.weights)
		bias, act := l.bias, l.act
		next.Apply(func(_, j int, v float64) float64 {
			return act(v + bias[j])
		}, &next)
		h = &next
	}

	return h.(*mat.Dense), nil
}

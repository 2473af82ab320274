package triton

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// KServe v2 datatypes used by the plate models.
const (
	DatatypeFP32  = "FP32"
	DatatypeBytes = "BYTES"
)

// InferRequest is the body of POST /v2/models/{model}/infer.
type InferRequest struct {
	ID      string            `json:"id,omitempty"`
	Inputs  []InputTensor     `json:"inputs"`
	Outputs []RequestedOutput `json:"outputs,omitempty"`
}

// InputTensor is one named request tensor with row-major flattened data.
type InputTensor struct {
	Name     string  `json:"name"`
	Shape    []int64 `json:"shape"`
	Datatype string  `json:"datatype"`
	Data     any     `json:"data"`
}

// RequestedOutput names an output the server should return.
type RequestedOutput struct {
	Name string `json:"name"`
}

// InferResponse is the body returned by a successful infer call.
type InferResponse struct {
	ModelName    string         `json:"model_name"`
	ModelVersion string         `json:"model_version,omitempty"`
	ID           string         `json:"id,omitempty"`
	Outputs      []OutputTensor `json:"outputs"`
}

// OutputTensor keeps the data raw until the caller knows the datatype.
type OutputTensor struct {
	Name     string              `json:"name"`
	Shape    []int64             `json:"shape"`
	Datatype string              `json:"datatype"`
	Data     jsoniter.RawMessage `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Output returns the output tensor with the given name.
func (r *InferResponse) Output(name string) (*OutputTensor, error) {
	for i := range r.Outputs {
		if r.Outputs[i].Name == name {
			return &r.Outputs[i], nil
		}
	}
	return nil, errors.Errorf("output %q missing from response of model %q", name, r.ModelName)
}

// Float32s decodes FP32 data and checks it against the shape.
func (t *OutputTensor) Float32s() ([]float32, error) {
	if t.Datatype != DatatypeFP32 {
		return nil, errors.Errorf("output %q has datatype %s, want %s", t.Name, t.Datatype, DatatypeFP32)
	}

	var data []float32
	if err := json.Unmarshal(t.Data, &data); err != nil {
		return nil, errors.Wrapf(err, "failed to decode output %q", t.Name)
	}

	if want := elements(t.Shape); int64(len(data)) != want {
		return nil, errors.Errorf("output %q holds %d values, shape %v needs %d", t.Name, len(data), t.Shape, want)
	}
	return data, nil
}

// Strings decodes BYTES data.
func (t *OutputTensor) Strings() ([]string, error) {
	if t.Datatype != DatatypeBytes {
		return nil, errors.Errorf("output %q has datatype %s, want %s", t.Name, t.Datatype, DatatypeBytes)
	}

	var data []string
	if err := json.Unmarshal(t.Data, &data); err != nil {
		return nil, errors.Wrapf(err, "failed to decode output %q", t.Name)
	}
	return data, nil
}

// Dims converts the shape to ints.
func (t *OutputTensor) Dims() []int {
	dims := make([]int, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = int(d)
	}
	return dims
}

func elements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

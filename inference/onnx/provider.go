package onnx

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Provider is an ONNX Runtime execution provider.
type Provider string

const (
	// ProviderCPU runs on the default CPU provider.
	ProviderCPU Provider = "cpu"
	// ProviderCUDA uses NVIDIA CUDA.
	ProviderCUDA Provider = "cuda"
	// ProviderCoreML uses Apple CoreML.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO uses Intel OpenVINO.
	ProviderOpenVINO Provider = "openvino"
)

// ProviderOptions selects and tunes the execution provider.
type ProviderOptions struct {
	Backend Provider `json:"backend" yaml:"backend" validate:"omitempty,oneof=cpu cuda coreml openvino"`

	// DeviceID selects the GPU for CUDA and the device for OpenVINO.
	DeviceID int `json:"device_id" yaml:"device_id" validate:"gte=0"`
	// GPUMemLimit caps the CUDA arena in bytes; zero keeps the runtime default.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit" validate:"gte=0"`

	// CoreMLFlags are the COREML_FLAG_* bits passed to the CoreML provider.
	CoreMLFlags uint32 `json:"coreml_flags" yaml:"coreml_flags"`

	// DeviceType is the OpenVINO target, e.g. CPU, GPU or NPU.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// Precision is the OpenVINO precision hint, e.g. FP32 or FP16.
	Precision string `json:"precision" yaml:"precision"`
	// NumThreads overrides the OpenVINO thread count.
	NumThreads int `json:"num_threads" yaml:"num_threads" validate:"gte=0"`
}

// cudaOptions returns the key/value settings for the CUDA provider.
func (p ProviderOptions) cudaOptions() map[string]string {
	opts := map[string]string{
		"device_id": strconv.Itoa(p.DeviceID),
	}
	if p.GPUMemLimit > 0 {
		opts["gpu_mem_limit"] = strconv.FormatInt(p.GPUMemLimit, 10)
	}
	return opts
}

// openVINOOptions returns the key/value settings for the OpenVINO provider.
// See https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html
func (p ProviderOptions) openVINOOptions() map[string]string {
	opts := map[string]string{}
	if p.DeviceType != "" {
		opts["device_type"] = p.DeviceType
	}
	if p.Precision != "" {
		opts["precision"] = p.Precision
	}
	if p.NumThreads > 0 {
		opts["num_of_threads"] = strconv.Itoa(p.NumThreads)
	}
	return opts
}

// appendTo enables the provider on the session options. The CPU provider is
// always present and needs nothing.
func (p ProviderOptions) appendTo(options *ort.SessionOptions) error {
	switch p.Backend {
	case ProviderCPU, "":
		return nil
	case ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(p.CoreMLFlags); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case ProviderOpenVINO:
		if err := options.AppendExecutionProviderOpenVINO(p.openVINOOptions()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()

		if err := cuda.Update(p.cudaOptions()); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	default:
		return errors.Errorf("unsupported execution provider %q", p.Backend)
	}
	return nil
}

package inference

// Backend names a predictor implementation.
type Backend string

const (
	// BackendTriton calls a Triton (KServe v2) inference server over HTTP.
	BackendTriton Backend = "triton"
	// BackendONNX runs the model in process with onnxruntime.
	BackendONNX Backend = "onnx"
	// BackendGemini asks a Gemini vision model to read the plate.
	BackendGemini Backend = "gemini"
)

// DetectorBackends are the backends that can produce detection tensors.
var DetectorBackends = []Backend{BackendTriton, BackendONNX}

// RecognizerBackends are the backends that can read plate text.
var RecognizerBackends = []Backend{BackendTriton, BackendGemini}

package service

import "errors"

var (
	ErrDecode          = errors.New("invalid image data")
	ErrUnknownTask     = errors.New("unknown task")
	ErrNotInitialized  = errors.New("model not initialized")
	ErrModelLoad       = errors.New("failed to load model")
	ErrInferenceEngine = errors.New("inference failed")
	ErrTimeout         = errors.New("inference timed out")
	ErrLabelNotFound   = errors.New("label not found")
)

// ClientError reports whether err was caused by the request rather than the
// server.
func ClientError(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrUnknownTask)
}

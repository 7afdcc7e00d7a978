// Package recognition turns a captured image into text. A Worker owns one OCR
// engine instance and walks it through a bounded lifecycle:
// uninitialized -> ready -> busy -> ready -> terminated.
package recognition

import (
	"context"
	"errors"
)

var (
	// ErrEngineInit means the OCR engine failed to load. Fatal for this
	// worker; the caller may retry Initialize or build a fresh worker.
	ErrEngineInit = errors.New("ocr engine failed to initialize")

	// ErrRecognitionFailed means a single recognition attempt failed. The
	// worker stays usable; retry with a fresh capture.
	ErrRecognitionFailed = errors.New("failed to extract text from image")
)

// CharWhitelist restricts recognition to the characters a photographed
// question can contain: digits, Latin letters, math and punctuation symbols.
const CharWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz+-=()[]{}.,?!:; "

// Config tunes an engine for a single photographed question rather than a
// full page layout.
type Config struct {
	CharWhitelist string
	// SingleBlock selects single-block page segmentation.
	SingleBlock bool
}

func DefaultConfig() Config {
	return Config{CharWhitelist: CharWhitelist, SingleBlock: true}
}

// Result is the immutable outcome of one successful recognition.
type Result struct {
	Text       string  // whitespace-trimmed
	Confidence float64 // 0..100
}

// Progress is one progress report during a long recognition.
type Progress struct {
	Status   string
	Progress float64 // non-decreasing in [0,1]; final report is exactly 1
}

// ProgressFunc receives progress reports. May be nil.
type ProgressFunc func(Progress)

// Engine is the OCR engine collaborator. Implementations own their engine
// handle; calls on one Engine are serialized by the owning Worker.
type Engine interface {
	Load(ctx context.Context, cfg Config) error
	Recognize(ctx context.Context, image []byte) (Result, error)
	Unload() error
}

package models

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyImage    = errors.New("empty image buffer")
	ErrImageTooLarge = errors.New("image dimensions exceed the pixel limit")
)

// DecodeError means the client sent something that is not a decodable image.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// UnknownClassError reports a class id outside the engine's label table.
type UnknownClassError struct {
	ClassID    int
	NumClasses int
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown class id %d (label table has %d entries)", e.ClassID, e.NumClasses)
}

type EncodeError struct {
	Cause error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode image: %v", e.Cause)
}

func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// InferenceError wraps failures inside the model runtime.
type InferenceError struct {
	Message string
	Cause   error
}

func (e *InferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}

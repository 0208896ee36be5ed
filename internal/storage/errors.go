package storage

import "errors"

var (
	ErrUnreachable        = errors.New("vector store unreachable")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrIndexInconsistent  = errors.New("vector index inconsistent with active embedding provider")
	ErrInvalidRecord      = errors.New("invalid index record")
	ErrUnsupportedBackend = errors.New("unsupported vector backend")
)

package app

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnsupportedFolder     = errors.New("unsupported folder class")
	ErrPayloadTooLarge       = errors.New("document exceeds upload limit")
	ErrStorage               = errors.New("document storage failed")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrMessageEmpty          = errors.New("message content is empty")
	ErrLLMConfig             = errors.New("llm config is invalid")
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)

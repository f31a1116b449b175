package service

import "errors"

var (
	ErrValidation          = errors.New("session id is required")
	ErrSessionNotFound     = errors.New("session not found")
	ErrRegistryUnavailable = errors.New("registry not initialized")
	ErrSessionNotConnected = errors.New("session is not connected")
	ErrSendFailed          = errors.New("failed to send message")
)

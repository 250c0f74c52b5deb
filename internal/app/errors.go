package app

import "errors"

var (
	ErrEmailTaken            = errors.New("email already registered")
	ErrUnknownUser           = errors.New("unknown user")
	ErrWrongPassword         = errors.New("wrong password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmptyMessage          = errors.New("message required")
	ErrInvalidPersonalityID  = errors.New("invalid personality id")
	ErrPersonalityNotFound   = errors.New("personality not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrPosterSessionNotFound = errors.New("poster session not found")
	ErrImageTooLarge         = errors.New("image exceeds size limit")
	ErrNotAnImage            = errors.New("file is not an image")
)

package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Ошибки авторизации
	ErrPermissionDenied = errors.New("permission denied")

	// Ошибки бизнес-правил
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrNotImplemented      = errors.New("not implemented")
	ErrConcurrentUpdate    = errors.New("resource was modified concurrently, retry the request")
	ErrNotEnoughPlayers    = errors.New("not enough confirmed participants")
	ErrCorruptBracket      = errors.New("bracket integrity check failed")
	ErrStorageNotAvailable = errors.New("file storage is not configured")
)

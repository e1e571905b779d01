package services

import "errors"

// Ошибки сервисного слоя; handlers маппят их в HTTP-статусы.
var (
	// Ресурс не найден
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrGameNotFound       = errors.New("game not found")

	// Некорректный запрос (до обращения к хранилищу)
	ErrIDMismatch          = errors.New("the ID in the URL does not match the ID in the body")
	ErrSearchTermRequired  = errors.New("you must provide a title to search")
	ErrInvalidTournamentID = errors.New("tournamentId must be a positive integer")

	// Семантическая валидация; всегда оборачивает validation.Errors
	ErrValidationFailed = errors.New("validation failed")

	// Оптимистическая блокировка
	ErrConcurrencyConflict = errors.New("the resource was modified by another request")

	// Загрузка логотипа
	ErrLogoStorageUnavailable = errors.New("logo storage is not configured")
	ErrLogoContentType        = errors.New("logo must be a PNG, JPEG or WebP image")
)

package models

const (
	// UserIDHeader carries the acting user on every request.
	UserIDHeader = "X-Sharer-User-Id"

	// RequestIDHeader correlates gateway and server log lines.
	RequestIDHeader = "X-Request-Id"
)

const (
	// DefaultPageSize размер страницы по умолчанию
	DefaultPageSize = 10

	// DefaultFrom смещение по умолчанию
	DefaultFrom = 0

	// RateLimitRequests запросов на пользователя в окне
	RateLimitRequests = 100

	// RateLimitWindow окно ограничения частоты запросов
	RateLimitWindow = 60 // 1 минута в секундах

	// ExportMaxRows предел строк в XLSX выгрузке, не больше pagination.MaxSize
	ExportMaxRows = 10000
)

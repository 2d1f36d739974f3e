package domain

import "errors"

var (
	// ErrKeyNotFound возвращается хранилищами, если ключа нет или он истёк.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyRequired — пустой ключ в Visitor Store.
	ErrKeyRequired = errors.New("storage key is required")
	// ErrInvalidDurability — неизвестный класс хранения.
	ErrInvalidDurability = errors.New("invalid storage durability")
	// ErrStoreClosed — хранилище уже закрыто.
	ErrStoreClosed = errors.New("store is closed")
	// ErrCorruptProfile — сохранённый профиль не разбирается; посетитель считается гостем.
	ErrCorruptProfile = errors.New("stored profile is corrupt")
	// ErrCacheCorrupt — запись кэша не десериализуется; трактуется как промах.
	ErrCacheCorrupt = errors.New("cache entry is corrupt")
	// ErrUpstreamUnavailable — транспортная ошибка или non-2xx от внешнего сервиса.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	// ErrCatalogUnavailable — каталог получить не удалось; единственная ошибка,
	// которая поднимается до вызывающего (с возможностью повторить).
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrRecommendationUnavailable — ступень рекомендаций не смогла получить ответ.
	ErrRecommendationUnavailable = errors.New("recommendation service unavailable")
	// ErrProfileInvalid — профиль для входа не прошёл валидацию.
	ErrProfileInvalid = errors.New("profile is invalid")
)

// IsNotFound проверяет, является ли ошибка отсутствием ключа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsRetryable сообщает, имеет ли смысл предложить пользователю повторить запрос.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable) || errors.Is(err, ErrUpstreamUnavailable)
}

package recommend

import "sync/atomic"

// Token — флаг отмены, принадлежащий инициирующему контексту запроса.
// Отмена рекомендательная: сетевой вызов не прерывается, отбрасывается только результат.
type Token struct {
	cancelled atomic.Bool
}

// NewToken создаёт активный токен.
func NewToken() *Token {
	return &Token{}
}

// Cancel помечает токен отменённым. Повторные вызовы безопасны.
func (t *Token) Cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

// Cancelled сообщает, отменён ли токен. nil-токен никогда не отменён.
func (t *Token) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}

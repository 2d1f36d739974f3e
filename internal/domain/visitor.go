package domain

import "strings"

// VisitorKey — непрозрачный стабильный идентификатор посетителя витрины.
type VisitorKey string

// String реализует fmt.Stringer.
func (k VisitorKey) String() string { return string(k) }

// IsZero сообщает, что ключ не определён.
func (k VisitorKey) IsZero() bool { return strings.TrimSpace(string(k)) == "" }

// Durability задаёт класс хранения в Visitor Store.
type Durability string

const (
	// Переживает перезапуск браузера (guest id, профиль).
	DurabilityPersistent Durability = "persistent"
	// Живёт до конца сессии просмотра (кэш рекомендаций).
	DurabilitySession Durability = "session"
)

// Valid проверяет, что класс хранения известен.
func (d Durability) Valid() bool {
	return d == DurabilityPersistent || d == DurabilitySession
}

// Ключи Visitor Store, которыми пользуется ядро.
const (
	// ProfileStorageKey хранит JSON профиля авторизованного пользователя.
	ProfileStorageKey = "userInfo"
	// GuestStorageKey хранит сгенерированный идентификатор гостя.
	GuestStorageKey = "guestId"
)

// Profile — сохранённый профиль авторизованного посетителя.
// Поля перечислены в порядке убывания стабильности.
type Profile struct {
	PrimaryID   string `json:"_id,omitempty"`
	SecondaryID string `json:"id,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Token       string `json:"token,omitempty"`
}

// HasIdentity сообщает, есть ли в профиле хоть один пригодный идентификатор.
func (p Profile) HasIdentity() bool {
	return strings.TrimSpace(p.PrimaryID) != "" ||
		strings.TrimSpace(p.SecondaryID) != "" ||
		strings.TrimSpace(p.Email) != "" ||
		strings.TrimSpace(p.Token) != ""
}

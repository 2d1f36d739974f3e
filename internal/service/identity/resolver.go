// Package identity выводит стабильный ключ посетителя из состояния Visitor Store.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultTokenPrefixLen — длина стабильного префикса токена сессии.
const DefaultTokenPrefixLen = 16

// Resolver вычисляет VisitorKey: для авторизованного посетителя из профиля,
// для гостя из сохранённого случайного идентификатора.
type Resolver struct {
	store          domain.VisitorStore
	logger         *log.Entry
	validate       *validator.Validate
	newID          func() string
	tokenPrefixLen int
}

// Option настраивает Resolver.
type Option func(*Resolver)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTokenPrefixLen меняет длину префикса токена.
func WithTokenPrefixLen(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.tokenPrefixLen = n
		}
	}
}

// WithIDGenerator подменяет генератор guest id.
func WithIDGenerator(gen func() string) Option {
	return func(r *Resolver) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewResolver создаёт резолвер поверх хранилища посетителя.
func NewResolver(store domain.VisitorStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:          store,
		logger:         log.New().WithField("component", "identity"),
		validate:       validator.New(),
		newID:          uuid.NewString,
		tokenPrefixLen: DefaultTokenPrefixLen,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve возвращает ключ посетителя. Ошибок не возвращает: любые проблемы
// с профилем ведут в гостевую ветку.
func (r *Resolver) Resolve(ctx context.Context) domain.VisitorKey {
	profile, err := r.Profile(ctx)
	switch {
	case err == nil:
		if key := r.keyFromProfile(profile); key != "" {
			return key
		}
	case errors.Is(err, domain.ErrKeyNotFound):
	default:
		r.logger.WithError(err).Warn("stored profile ignored, resolving as guest")
	}
	return r.guestKey(ctx)
}

// Authenticated сообщает, есть ли пригодный профиль.
func (r *Resolver) Authenticated(ctx context.Context) bool {
	profile, err := r.Profile(ctx)
	return err == nil && profile.HasIdentity()
}

// Profile читает сохранённый профиль.
func (r *Resolver) Profile(ctx context.Context) (domain.Profile, error) {
	raw, err := r.store.Get(ctx, domain.DurabilityPersistent, domain.ProfileStorageKey)
	if err != nil {
		return domain.Profile{}, err
	}
	var profile domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %v", domain.ErrCorruptProfile, err)
	}
	return profile, nil
}

func (r *Resolver) keyFromProfile(p domain.Profile) domain.VisitorKey {
	for _, candidate := range []string{p.PrimaryID, p.SecondaryID, p.Email} {
		if v := strings.TrimSpace(candidate); v != "" {
			return domain.VisitorKey(v)
		}
	}
	token := strings.TrimSpace(p.Token)
	if token == "" {
		return ""
	}
	runes := []rune(token)
	if len(runes) > r.tokenPrefixLen {
		runes = runes[:r.tokenPrefixLen]
	}
	return domain.VisitorKey(string(runes))
}

func (r *Resolver) guestKey(ctx context.Context) domain.VisitorKey {
	stored, err := r.store.Get(ctx, domain.DurabilityPersistent, domain.GuestStorageKey)
	if err == nil && strings.TrimSpace(stored) != "" {
		return domain.VisitorKey(stored)
	}
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		// Сохранённый id может существовать: временный ключ не записывается.
		id := r.newID()
		r.logger.WithError(err).WithField("visitor_key", id).Warn("failed to read guest id, using ephemeral key")
		return domain.VisitorKey(id)
	}

	id := r.newID()
	if err := r.store.Set(ctx, domain.DurabilityPersistent, domain.GuestStorageKey, id); err != nil {
		r.logger.WithError(err).WithField("visitor_key", id).Warn("failed to persist guest id")
	} else {
		r.logger.WithField("visitor_key", id).Debug("guest id issued")
	}
	return domain.VisitorKey(id)
}

// SignIn сохраняет профиль авторизованного посетителя.
func (r *Resolver) SignIn(ctx context.Context, profile domain.Profile) error {
	if !profile.HasIdentity() {
		return fmt.Errorf("%w: no identifier", domain.ErrProfileInvalid)
	}
	if err := r.validate.Struct(profile); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProfileInvalid, err)
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := r.store.Set(ctx, domain.DurabilityPersistent, domain.ProfileStorageKey, string(data)); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	return nil
}

// SignOut удаляет профиль. Guest id сохраняется, поэтому посетитель
// возвращается к прежнему гостевому ключу.
func (r *Resolver) SignOut(ctx context.Context) error {
	if err := r.store.Delete(ctx, domain.DurabilityPersistent, domain.ProfileStorageKey); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// ForgetGuest явно сбрасывает guest id; следующий Resolve выдаст новый.
func (r *Resolver) ForgetGuest(ctx context.Context) error {
	if err := r.store.Delete(ctx, domain.DurabilityPersistent, domain.GuestStorageKey); err != nil {
		return fmt.Errorf("delete guest id: %w", err)
	}
	return nil
}

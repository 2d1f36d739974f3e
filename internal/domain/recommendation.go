package domain

// Tier — ступень цепочки fallback, выдавшая рекомендации.
type Tier string

const (
	TierCart    Tier = "cart"
	TierProduct Tier = "product"
	TierVisitor Tier = "visitor"
	TierEmpty   Tier = "empty"
)

// RecommendationResult — упорядоченный список рекомендаций с пометкой источника.
type RecommendationResult struct {
	Tier     Tier
	Products []Product
	// Ключ кэша ответа. Пустой, если ступень не кэшируется.
	Fingerprint string
	// Ответ взят из кэша без обращения к сервису.
	FromCache bool
	// Список собран из каталога, потому что сервис ничего не вернул.
	Fallback bool
	// Контекст запроса отменён, результат нельзя применять.
	Discarded bool
}

// IsEmpty сообщает, что показывать нечего.
func (r RecommendationResult) IsEmpty() bool {
	return len(r.Products) == 0
}

// EmptyResult: допустимое терминальное состояние цепочки.
func EmptyResult() RecommendationResult {
	return RecommendationResult{Tier: TierEmpty, Products: []Product{}}
}

// DiscardedResult помечает результат отменённого контекста.
func DiscardedResult() RecommendationResult {
	return RecommendationResult{Tier: TierEmpty, Products: []Product{}, Discarded: true}
}

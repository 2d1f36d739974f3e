package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// EventTypeRecommendationServed — цепочка выдала результат, который был применён.
	EventTypeRecommendationServed EventType = "recommendation.served"
	// EventTypeCatalogUnavailable — витрина не смогла загрузить каталог.
	EventTypeCatalogUnavailable EventType = "catalog.unavailable"
	// EventTypeVisitorSignedIn / EventTypeVisitorSignedOut — смена активной личности.
	EventTypeVisitorSignedIn  EventType = "visitor.signed_in"
	EventTypeVisitorSignedOut EventType = "visitor.signed_out"
)

// Topics для Kafka
const (
	TopicRecommendationEvents = "storefront.recommendation.events"
	TopicVisitorEvents        = "storefront.visitor.events"
)

// RecommendationEvent описывает выданную подборку для аналитики.
type RecommendationEvent struct {
	EventType   EventType `json:"event_type"`
	VisitorKey  string    `json:"visitor_key"`
	Tier        string    `json:"tier"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	FromCache   bool      `json:"from_cache"`
	Fallback    bool      `json:"fallback"`
	ProductIDs  []string  `json:"product_ids"`
	Timestamp   time.Time `json:"timestamp"`
}

// VisitorEvent описывает изменение состояния посетителя.
type VisitorEvent struct {
	EventType  EventType              `json:"event_type"`
	VisitorKey string                 `json:"visitor_key"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewRecommendationEvent создает событие выдачи рекомендаций
func NewRecommendationEvent(visitorKey, tier, fingerprint string, fromCache, fallback bool, productIDs []string) *RecommendationEvent {
	if productIDs == nil {
		productIDs = []string{}
	}
	return &RecommendationEvent{
		EventType:   EventTypeRecommendationServed,
		VisitorKey:  visitorKey,
		Tier:        tier,
		Fingerprint: fingerprint,
		FromCache:   fromCache,
		Fallback:    fallback,
		ProductIDs:  productIDs,
		Timestamp:   time.Now(),
	}
}

// NewVisitorEvent создает событие посетителя
func NewVisitorEvent(eventType EventType, visitorKey string, metadata map[string]interface{}) *VisitorEvent {
	return &VisitorEvent{
		EventType:  eventType,
		VisitorKey: visitorKey,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

package recommend

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Fetcher выполняет цепочку рекомендаций. Реализуется Orchestrator.
type Fetcher interface {
	FetchFor(ctx context.Context, req Request, token *Token) domain.RecommendationResult
}

// Surface — одна потребляющая поверхность (панель корзины, товара, главной).
// Текущим считается только последний запрос; результат предыдущего отбрасывается.
type Surface struct {
	name    string
	fetcher Fetcher
	logger  *log.Entry

	mu       sync.Mutex
	current  *Token
	state    domain.RecommendationResult
	applied  bool
	triggers uint64
}

// NewSurface создаёт поверхность с именем для логов.
func NewSurface(name string, fetcher Fetcher, logger *log.Entry) *Surface {
	if logger == nil {
		logger = log.New().WithField("component", "recommend-surface")
	}
	return &Surface{
		name:    name,
		fetcher: fetcher,
		logger:  logger.WithField("surface", name),
	}
}

// Name возвращает имя поверхности.
func (s *Surface) Name() string { return s.name }

// Refresh отменяет предыдущий запрос поверхности и выполняет новый.
// Второе значение сообщает, был ли результат применён.
func (s *Surface) Refresh(ctx context.Context, req Request) (domain.RecommendationResult, bool) {
	token := NewToken()

	s.mu.Lock()
	if s.current != nil {
		s.current.Cancel()
	}
	s.current = token
	s.triggers++
	s.mu.Unlock()

	result := s.fetcher.FetchFor(ctx, req, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if result.Discarded || token.Cancelled() || s.current != token {
		s.logger.WithField("visitor_key", req.VisitorKey).Debug("superseded result dropped")
		return domain.DiscardedResult(), false
	}
	s.current = nil
	s.state = result
	s.applied = true
	return result, true
}

// Snapshot возвращает последний применённый результат.
func (s *Surface) Snapshot() (domain.RecommendationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.applied {
		return domain.RecommendationResult{}, false
	}
	out := s.state
	out.Products = domain.CloneProducts(s.state.Products)
	return out, true
}

// Reset отменяет текущий запрос и очищает состояние (смена личности посетителя).
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Cancel()
		s.current = nil
	}
	s.state = domain.RecommendationResult{}
	s.applied = false
}

// Triggers возвращает число запусков Refresh.
func (s *Surface) Triggers() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

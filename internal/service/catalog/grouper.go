// Package catalog группирует каталог по категориям с персональным порядком
// и ищет товары в два яруса: точный, затем нечёткий.
package catalog

import (
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/shuffle"
)

// Значения по умолчанию для витрины.
const (
	DefaultPageSize       = 8
	DefaultFuzzyLimit     = 8
	DefaultFuzzyPrefixLen = 3
)

// ViewKind различает варианты GroupedView.
type ViewKind string

const (
	KindGrouped ViewKind = "grouped"
	KindFlat    ViewKind = "flat"
)

// SearchTier фиксирует, какой ярус поиска дал результат.
type SearchTier string

const (
	SearchNone  SearchTier = "none"
	SearchExact SearchTier = "exact"
	SearchFuzzy SearchTier = "fuzzy"
)

// Group — полка одной категории.
type Group struct {
	Category string           `json:"category"`
	Products []domain.Product `json:"products"`
}

// GroupedView содержит либо группы по категориям, либо плоский список результатов поиска.
type GroupedView struct {
	Kind       ViewKind         `json:"kind"`
	Groups     []Group          `json:"groups,omitempty"`
	Results    []domain.Product `json:"results,omitempty"`
	SearchTier SearchTier       `json:"search_tier"`
}

// Grouped собирает вариант с группами.
func Grouped(groups []Group) GroupedView {
	return GroupedView{Kind: KindGrouped, Groups: groups, SearchTier: SearchNone}
}

// Flat собирает плоский вариант.
func Flat(results []domain.Product, tier SearchTier) GroupedView {
	return GroupedView{Kind: KindFlat, Results: results, SearchTier: tier}
}

// IsGrouped сообщает, что представление сгруппировано.
func (v GroupedView) IsGrouped() bool { return v.Kind == KindGrouped }

// Config задаёт размеры витрины.
type Config struct {
	PageSize       int `koanf:"page_size" validate:"min=1"`
	FuzzyLimit     int `koanf:"fuzzy_limit" validate:"min=1"`
	FuzzyPrefixLen int `koanf:"fuzzy_prefix_len" validate:"min=1"`
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		PageSize:       DefaultPageSize,
		FuzzyLimit:     DefaultFuzzyLimit,
		FuzzyPrefixLen: DefaultFuzzyPrefixLen,
	}
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.FuzzyLimit <= 0 {
		c.FuzzyLimit = DefaultFuzzyLimit
	}
	if c.FuzzyPrefixLen <= 0 {
		c.FuzzyPrefixLen = DefaultFuzzyPrefixLen
	}
	return c
}

// ViewOptions — параметры одного построения витрины.
type ViewOptions struct {
	// Точный фильтр по категории, пустая строка отключает фильтр.
	Category   string
	VisitorKey domain.VisitorKey
}

// Grouper — чистая логика группировки и поиска, без ввода-вывода.
type Grouper struct {
	cfg Config
}

// NewGrouper создаёт группировщик; нулевые поля конфигурации заменяются значениями по умолчанию.
func NewGrouper(cfg Config) *Grouper {
	return &Grouper{cfg: cfg.withDefaults()}
}

// Config возвращает действующую конфигурацию.
func (g *Grouper) Config() Config { return g.cfg }

// BuildView группирует товары по категории в порядке первого появления,
// перемешивает каждую группу по ключу посетителя и обрезает до размера страницы.
func (g *Grouper) BuildView(products []domain.Product, opts ViewOptions) GroupedView {
	filtered := filterCategory(products, opts.Category)

	order := make([]string, 0)
	byCategory := make(map[string][]domain.Product)
	for _, p := range filtered {
		if _, seen := byCategory[p.Category]; !seen {
			order = append(order, p.Category)
		}
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	groups := make([]Group, 0, len(order))
	for _, category := range order {
		shelf := shuffle.Permute(byCategory[category], string(opts.VisitorKey)+category)
		if len(shelf) > g.cfg.PageSize {
			shelf = shelf[:g.cfg.PageSize]
		}
		groups = append(groups, Group{Category: category, Products: shelf})
	}
	return Grouped(groups)
}

// Search ищет по каталогу. Пустой запрос возвращает сгруппированную витрину.
// Нечёткий ярус включается только при пустом точном.
func (g *Grouper) Search(products []domain.Product, query string, opts ViewOptions) GroupedView {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return g.BuildView(products, opts)
	}

	filtered := filterCategory(products, opts.Category)
	if exact := exactMatches(filtered, q); len(exact) > 0 {
		return Flat(exact, SearchExact)
	}
	return Flat(g.fuzzyMatches(filtered, q), SearchFuzzy)
}

func exactMatches(products []domain.Product, q string) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Brand), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out
}

func (g *Grouper) fuzzyMatches(products []domain.Product, q string) []domain.Product {
	prefix := q
	if runes := []rune(q); len(runes) > g.cfg.FuzzyPrefixLen {
		prefix = string(runes[:g.cfg.FuzzyPrefixLen])
	}

	out := make([]domain.Product, 0)
	for _, p := range products {
		if len(out) >= g.cfg.FuzzyLimit {
			break
		}
		for _, word := range strings.Fields(strings.ToLower(p.Name)) {
			if strings.Contains(q, word) || strings.HasPrefix(word, prefix) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func filterCategory(products []domain.Product, category string) []domain.Product {
	if category == "" {
		return products
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

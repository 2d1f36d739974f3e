package domain

// Product — неизменяемая запись каталога, которую отдаёт Catalog Service.
type Product struct {
	// Собственный идентификатор витрины.
	ID string `json:"_id"`
	// Ключ, по которому Recommendation Service узнаёт товар.
	ExternalID string `json:"externalId"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	Image      string  `json:"image,omitempty"`
}

// CloneProducts возвращает независимую копию списка товаров.
// nil на входе превращается в пустой, но не nil, срез.
func CloneProducts(products []Product) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

// ExcludeExternalID возвращает товары каталога без указанного товара.
func ExcludeExternalID(products []Product, externalID string) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.ExternalID == externalID {
			continue
		}
		out = append(out, p)
	}
	return out
}

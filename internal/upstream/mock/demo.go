package mock

import (
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type demoItem struct {
	name, brand, category string
	price                 float64
}

var demoItems = []demoItem{
	{"Aurora Desk Lamp", "Lumo", "Home", 39.90},
	{"Linen Throw Pillow", "Nest", "Home", 24.50},
	{"Ceramic Pour-Over Set", "Kiln", "Home", 58.00},
	{"Cast Iron Skillet", "Forge", "Home", 44.00},
	{"Trail Running Shoes", "Stride", "Sports", 119.00},
	{"Yoga Mat Pro", "Zen", "Sports", 49.99},
	{"Insulated Water Bottle", "Hydra", "Sports", 29.00},
	{"Resistance Band Kit", "Stride", "Sports", 19.90},
	{"Noise Cancelling Headphones", "Sonar", "Electronics", 229.00},
	{"Mechanical Keyboard", "Keystone", "Electronics", 139.00},
	{"Wireless Charger", "Volt", "Electronics", 35.00},
	{"Smart Watch Band", "Volt", "Electronics", 25.00},
	{"Merino Wool Sweater", "Fjell", "Apparel", 98.00},
	{"Rain Shell Jacket", "Fjell", "Apparel", 159.00},
	{"Canvas Tote Bag", "Nest", "Apparel", 22.00},
	{"Organic Cotton Tee", "Basis", "Apparel", 18.00},
	{"Dark Roast Coffee Beans", "Kiln", "Grocery", 14.50},
	{"Matcha Green Tea", "Zen", "Grocery", 21.00},
	{"Uncategorized Gift Card", "Storefront", "", 50.00},
}

// DemoCatalog возвращает небольшой каталог для локального запуска и CLI.
// Один товар намеренно без категории.
func DemoCatalog() []domain.Product {
	products := make([]domain.Product, 0, len(demoItems))
	for i, item := range demoItems {
		products = append(products, domain.Product{
			ID:         fmt.Sprintf("demo-%02d", i+1),
			ExternalID: fmt.Sprintf("p%d", i+1),
			Name:       item.name,
			Brand:      item.brand,
			Category:   item.category,
			Price:      item.price,
		})
	}
	return products
}

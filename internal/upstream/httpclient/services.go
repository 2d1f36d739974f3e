package httpclient

import (
	"context"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CatalogClient реализует domain.CatalogService: GET {base}/products.
type CatalogClient struct {
	*Client
}

func NewCatalogClient(cfg Config, opts ...Option) (*CatalogClient, error) {
	c, err := newClient(ServiceCatalog, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &CatalogClient{Client: c}, nil
}

func (c *CatalogClient) ListAll(ctx context.Context) ([]domain.Product, error) {
	return c.fetchProducts(ctx, http.MethodGet, c.endpoint("products"), nil)
}

// RecommendationClient реализует domain.RecommendationService.
type RecommendationClient struct {
	*Client
}

func NewRecommendationClient(cfg Config, opts ...Option) (*RecommendationClient, error) {
	c, err := newClient(ServiceRecommendations, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &RecommendationClient{Client: c}, nil
}

type cartRequest struct {
	CartItems []string `json:"cartItems"`
}

// ByCart: POST {base}/recommendations/cart {"cartItems": [...]}.
func (c *RecommendationClient) ByCart(ctx context.Context, sortedExternalIDs []string) ([]domain.Product, error) {
	return c.fetchProducts(ctx, http.MethodPost, c.endpoint("recommendations", "cart"), cartRequest{CartItems: sortedExternalIDs})
}

// ByProduct: GET {base}/recommendations/product/{externalId}.
func (c *RecommendationClient) ByProduct(ctx context.Context, externalID string) ([]domain.Product, error) {
	return c.fetchProducts(ctx, http.MethodGet, c.endpoint("recommendations", "product", externalID), nil)
}

// ByVisitor: GET {base}/recommendations/visitor/{visitorKey}.
func (c *RecommendationClient) ByVisitor(ctx context.Context, visitorKey domain.VisitorKey) ([]domain.Product, error) {
	return c.fetchProducts(ctx, http.MethodGet, c.endpoint("recommendations", "visitor", visitorKey.String()), nil)
}

var (
	_ domain.CatalogService        = (*CatalogClient)(nil)
	_ domain.RecommendationService = (*RecommendationClient)(nil)
	_ domain.Pinger                = (*Client)(nil)
)

package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-gateway/internal/domain"
	"storefront-gateway/internal/jubelio"

	"go.uber.org/zap"
)

var (
	// ErrProductNotFound is the single outward signal for "no credential",
	// upstream absence and any ambiguous upstream failure
	ErrProductNotFound = errors.New("product not found")
)

// Catalog is the upstream inventory API
type Catalog interface {
	FetchItem(ctx context.Context, token string, id int64) (domain.RawItem, error)
	FetchItems(ctx context.Context, token string, q domain.ProductQuery) (*domain.RawPage, error)
	ExportItems(ctx context.Context, token string, q domain.ProductQuery) (*domain.CSVExport, error)
}

// TokenSource hands out upstream bearer tokens
type TokenSource interface {
	Token(ctx context.Context, opts jubelio.TokenOptions) (string, error)
	Invalidate()
}

// ProductService defines the product proxy operations
type ProductService interface {
	ListProducts(ctx context.Context, q domain.ProductQuery, callerToken string) (*domain.Page[domain.Product], error)
	ExportProducts(ctx context.Context, q domain.ProductQuery, callerToken string) (*domain.CSVExport, error)
	GetProduct(ctx context.Context, id int64, callerToken string) (*domain.ProductDetail, error)
}

type productService struct {
	catalog Catalog
	tokens  TokenSource
	logger  *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(catalog Catalog, tokens TokenSource, logger *zap.Logger) ProductService {
	return &productService{
		catalog: catalog,
		tokens:  tokens,
		logger:  logger,
	}
}

// ListProducts returns one normalized page of the item masters listing
func (s *productService) ListProducts(ctx context.Context, q domain.ProductQuery, callerToken string) (*domain.Page[domain.Product], error) {
	q = q.Normalize()

	token, fromProvider := s.resolveToken(ctx, callerToken)
	if token == "" {
		return nil, ErrProductNotFound
	}

	raw, err := s.catalog.FetchItems(ctx, token, q)
	if err != nil {
		return nil, s.mapUpstreamError(err, fromProvider)
	}
	if raw == nil || len(raw.Items) == 0 {
		return nil, ErrProductNotFound
	}

	products := make([]domain.Product, 0, len(raw.Items))
	for _, item := range raw.Items {
		products = append(products, Normalize(item))
	}

	return domain.NewPage(products, raw.TotalCount, q.Page, q.PageSize), nil
}

// ExportProducts passes the upstream CSV export through untouched
func (s *productService) ExportProducts(ctx context.Context, q domain.ProductQuery, callerToken string) (*domain.CSVExport, error) {
	q = q.Normalize()

	token, fromProvider := s.resolveToken(ctx, callerToken)
	if token == "" {
		return nil, ErrProductNotFound
	}

	export, err := s.catalog.ExportItems(ctx, token, q)
	if err != nil {
		return nil, s.mapUpstreamError(err, fromProvider)
	}
	return export, nil
}

// GetProduct loads a single item and its canonical form
func (s *productService) GetProduct(ctx context.Context, id int64, callerToken string) (*domain.ProductDetail, error) {
	token, fromProvider := s.resolveToken(ctx, callerToken)
	if token == "" {
		return nil, ErrProductNotFound
	}

	raw, err := s.catalog.FetchItem(ctx, token, id)
	if err != nil {
		return nil, s.mapUpstreamError(err, fromProvider)
	}
	if len(raw) == 0 {
		return nil, ErrProductNotFound
	}

	return &domain.ProductDetail{
		Raw:     raw,
		Product: NormalizeDetail(raw),
	}, nil
}

// resolveToken prefers the caller's bearer token and falls back to the
// token provider. A provider failure is logged and yields no token.
func (s *productService) resolveToken(ctx context.Context, callerToken string) (string, bool) {
	if callerToken != "" {
		return callerToken, false
	}

	token, err := s.tokens.Token(ctx, jubelio.TokenOptions{})
	if err != nil {
		s.logger.Warn("Unable to obtain server token for Jubelio", zap.Error(err))
		return "", false
	}
	return token, true
}

// mapUpstreamError folds every not-found flavour into ErrProductNotFound and
// lets upstream 500s and unexpected failures through unchanged.
func (s *productService) mapUpstreamError(err error, fromProvider bool) error {
	var statusErr *jubelio.StatusError
	if fromProvider && errors.As(err, &statusErr) && statusErr.Unauthorized() {
		// the next request re-authenticates
		s.tokens.Invalidate()
	}

	switch {
	case errors.Is(err, jubelio.ErrInternal):
		return err
	case errors.Is(err, jubelio.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrProductNotFound, err)
	default:
		return err
	}
}

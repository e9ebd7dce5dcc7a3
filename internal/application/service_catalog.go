package application

import (
	"context"

	"github.com/google/uuid"
)

func (s *Service) ListProducts(ctx context.Context) ([]ProductView, error) {
	products, err := s.deps.Products.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			ProductID:  p.ProductID,
			Slug:       p.Slug,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Currency:   p.Currency,
		})
	}
	return views, nil
}

func (s *Service) GetProduct(ctx context.Context, slug string) (ProductView, error) {
	p, err := s.deps.Products.GetBySlug(ctx, slug)
	if err != nil {
		return ProductView{}, err
	}
	return ProductView{
		ProductID:  p.ProductID,
		Slug:       p.Slug,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Currency:   p.Currency,
	}, nil
}

// ListMyLicenses returns the caller's licenses, active or not, so the client
// can explain why a download button is disabled.
func (s *Service) ListMyLicenses(ctx context.Context, userID uuid.UUID) ([]LicenseView, error) {
	licenses, err := s.deps.Licenses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]LicenseView, 0, len(licenses))
	for _, lic := range licenses {
		views = append(views, LicenseView{
			LicenseID: lic.LicenseID,
			ProductID: lic.ProductID,
			Status:    lic.Status,
			CreatedAt: lic.CreatedAt,
		})
	}
	return views, nil
}

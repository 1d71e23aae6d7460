package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/repository"
)

// ProductInput is the create/replace payload for a product.
type ProductInput struct {
	Name        string               `json:"name" validate:"required,max=200"`
	Price       *decimal.Decimal     `json:"price" validate:"required"`
	Description string               `json:"description" validate:"max=5000"`
	ImageURL    string               `json:"image_url" validate:"omitempty,url"`
	Status      models.ProductStatus `json:"status" validate:"omitempty,oneof=active inactive"`
	Stock       int                  `json:"stock" validate:"gte=0"`
}

// ProductQuery filters the catalog.
type ProductQuery struct {
	IncludeInactive bool
	Search          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Page            repository.Page
}

// ProductService manages the catalog that orders reference.
type ProductService struct {
	products repository.ProductRepository
	now      Clock
	log      *slog.Logger
}

// NewProductService constructs a ProductService.
func NewProductService(products repository.ProductRepository, log *slog.Logger) *ProductService {
	return &ProductService{products: products, now: SystemClock, log: log}
}

// WithClock replaces the time source.
func (s *ProductService) WithClock(c Clock) *ProductService {
	s.now = c
	return s
}

// ListProducts returns catalog products. Inactive products are only listed
// for admins that ask for them.
func (s *ProductService) ListProducts(ctx context.Context, caller *Identity, q ProductQuery) ([]models.Product, int64, error) {
	if q.IncludeInactive {
		if err := RequireRole(caller, models.RoleAdmin); err != nil {
			return nil, 0, err
		}
	}
	products, total, err := s.products.List(ctx, repository.ProductFilter{
		IncludeInactive: q.IncludeInactive,
		Search:          strings.TrimSpace(q.Search),
		MinPrice:        q.MinPrice,
		MaxPrice:        q.MaxPrice,
		Page:            q.Page,
	})
	if err != nil {
		return nil, 0, internal("list products", err)
	}
	return products, total, nil
}

// GetProduct returns one product. Inactive products are hidden from non-admins.
func (s *ProductService) GetProduct(ctx context.Context, caller *Identity, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("product")
		}
		return nil, internal("find product", err)
	}
	if product.Status != models.ProductActive && !caller.IsAdmin() {
		return nil, notFound("product")
	}
	return product, nil
}

// CreateProduct adds a product. Admin only.
func (s *ProductService) CreateProduct(ctx context.Context, caller *Identity, in ProductInput) (*models.Product, error) {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := checkProduct(&in); err != nil {
		return nil, err
	}

	product := &models.Product{}
	applyProduct(product, in)
	product.CreatedAt = s.now()
	product.UpdatedAt = product.CreatedAt

	if err := s.products.Create(ctx, product); err != nil {
		return nil, internal("create product", err)
	}
	s.log.Info("product created", "product_id", product.ID, "by", caller.UserID)
	return product, nil
}

// UpdateProduct replaces the editable fields of a product. Admin only.
func (s *ProductService) UpdateProduct(ctx context.Context, caller *Identity, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := checkProduct(&in); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("product")
		}
		return nil, internal("find product", err)
	}
	applyProduct(product, in)
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("product")
		}
		return nil, internal("update product", err)
	}
	s.log.Info("product updated", "product_id", id, "by", caller.UserID)
	return product, nil
}

// DeleteProduct removes a product. Orders that reference it keep their items
// and show an empty name and price. Admin only.
func (s *ProductService) DeleteProduct(ctx context.Context, caller *Identity, id uuid.UUID) error {
	if err := RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("product")
		}
		return internal("delete product", err)
	}
	s.log.Info("product deleted", "product_id", id, "by", caller.UserID)
	return nil
}

func checkProduct(in *ProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Status == "" {
		in.Status = models.ProductActive
	}

	fields := FieldErrors{}
	checkStruct(*in, fields)
	if in.Price != nil && in.Price.IsNegative() {
		fields.Add("price", "must be greater than or equal to 0")
	}
	return fields.Err()
}

func applyProduct(p *models.Product, in ProductInput) {
	p.Name = in.Name
	p.Price = in.Price.Round(2)
	p.Description = strings.TrimSpace(in.Description)
	p.ImageURL = strings.TrimSpace(in.ImageURL)
	p.Status = in.Status
	p.Stock = in.Stock
}

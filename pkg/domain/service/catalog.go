package service

import (
	"context"
	"fmt"
	"strings"

	"confectionery/pkg/domain/model"
)

type CatalogService interface {
	Seed(ctx context.Context, catalog model.Catalog) (*model.SeedResult, error)
}

func NewCatalogService(uow model.UnitOfWork) CatalogService {
	return &catalogService{uow: uow}
}

type catalogService struct {
	uow model.UnitOfWork
}

func (s *catalogService) Seed(ctx context.Context, catalog model.Catalog) (*model.SeedResult, error) {
	if err := validateCatalog(catalog); err != nil {
		return nil, err
	}

	result := &model.SeedResult{}
	err := s.uow.Execute(ctx, func(ctx context.Context, provider model.RepositoryProvider) error {
		result = &model.SeedResult{}

		for _, category := range catalog.Categories {
			if err := provider.CategoryRepository().Create(ctx, &category); err != nil {
				return err
			}
			result.CategoryIDs = append(result.CategoryIDs, category.ID)
		}

		for _, client := range catalog.Clients {
			if err := provider.ClientRepository().Create(ctx, &client); err != nil {
				return err
			}
			result.ClientIDs = append(result.ClientIDs, client.ID)
		}

		for _, entry := range catalog.Products {
			product := entry.Product
			if entry.CategoryRef != nil {
				product.CategoryID = result.CategoryIDs[*entry.CategoryRef]
			}
			if err := provider.ProductRepository().Create(ctx, &product); err != nil {
				return err
			}
			result.ProductIDs = append(result.ProductIDs, product.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func validateCatalog(catalog model.Catalog) error {
	for i, category := range catalog.Categories {
		if strings.TrimSpace(category.Name) == "" {
			return model.NewValidationError(fmt.Sprintf("categorias[%d].categoria", i), "is required")
		}
	}
	for i, client := range catalog.Clients {
		path := func(field string) string { return fmt.Sprintf("clientes[%d].%s", i, field) }
		switch {
		case strings.TrimSpace(client.Name) == "":
			return model.NewValidationError(path("nome"), "is required")
		case strings.TrimSpace(client.Phone) == "":
			return model.NewValidationError(path("telefone"), "is required")
		case strings.TrimSpace(client.Address) == "":
			return model.NewValidationError(path("endereco"), "is required")
		}
	}
	for i, product := range catalog.Products {
		path := func(field string) string { return fmt.Sprintf("produtos[%d].%s", i, field) }
		switch {
		case strings.TrimSpace(product.Name) == "":
			return model.NewValidationError(path("nome_produto"), "is required")
		case product.UnitPrice < 0:
			return model.NewValidationError(path("preco_unidade"), "must not be negative")
		case product.CategoryRef != nil && (*product.CategoryRef < 0 || *product.CategoryRef >= len(catalog.Categories)):
			return model.NewValidationError(path("categoria_ref"), "does not point at a category in this document")
		case product.CategoryRef == nil && product.CategoryID <= 0:
			return model.NewValidationError(path("categoria_id"), "either categoria_id or categoria_ref is required")
		}
	}
	return nil
}

package fixtures

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"confectionery/pkg/domain/model"
)

type CatalogJSON struct {
	Categories []CategoryJSON `json:"categorias"`
	Clients    []ClientJSON   `json:"clientes"`
	Products   []ProductJSON  `json:"produtos"`
}

type CategoryJSON struct {
	Name string `json:"categoria"`
}

type ClientJSON struct {
	Name    string `json:"nome"`
	Phone   string `json:"telefone"`
	Address string `json:"endereco"`
}

type ProductJSON struct {
	Name        string  `json:"nome_produto"`
	ExpiresOn   string  `json:"data_validade"`
	Brand       string  `json:"marca"`
	Barcode     string  `json:"codigo_barras"`
	UnitPrice   float64 `json:"preco_unidade"`
	Unit        string  `json:"unidade"`
	Quantity    float64 `json:"quantidade"`
	CategoryID  int64   `json:"categoria_id"`
	CategoryRef *int    `json:"categoria_ref"`
	RecipeID    *int64  `json:"receita_id"`
}

func LoadCatalog(filePath string) (model.Catalog, error) {
	file, err := os.ReadFile(filePath)
	if err != nil {
		return model.Catalog{}, err
	}

	decoder := json.NewDecoder(bytes.NewReader(file))
	decoder.DisallowUnknownFields()

	var data CatalogJSON
	if err := decoder.Decode(&data); err != nil {
		return model.Catalog{}, errors.Wrapf(err, "decode catalog %s", filePath)
	}

	return data.toModel(), nil
}

func (c CatalogJSON) toModel() model.Catalog {
	catalog := model.Catalog{
		Categories: make([]model.Category, 0, len(c.Categories)),
		Clients:    make([]model.Client, 0, len(c.Clients)),
		Products:   make([]model.CatalogProduct, 0, len(c.Products)),
	}
	for _, category := range c.Categories {
		catalog.Categories = append(catalog.Categories, model.Category{Name: category.Name})
	}
	for _, client := range c.Clients {
		catalog.Clients = append(catalog.Clients, model.Client{
			Name:    client.Name,
			Phone:   client.Phone,
			Address: client.Address,
		})
	}
	for _, product := range c.Products {
		catalog.Products = append(catalog.Products, model.CatalogProduct{
			Product: model.Product{
				Name:       product.Name,
				ExpiresOn:  product.ExpiresOn,
				Brand:      product.Brand,
				Barcode:    product.Barcode,
				UnitPrice:  product.UnitPrice,
				Unit:       product.Unit,
				Quantity:   product.Quantity,
				CategoryID: product.CategoryID,
				RecipeID:   product.RecipeID,
			},
			CategoryRef: product.CategoryRef,
		})
	}
	return catalog
}

package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"confectionery/pkg/domain/model"
)

type productRow struct {
	ID         int64          `db:"id"`
	Name       string         `db:"nome_produto"`
	ExpiresOn  string         `db:"data_validade"`
	Brand      string         `db:"marca"`
	Barcode    sql.NullString `db:"codigo_barras"`
	UnitPrice  float64        `db:"preco_unidade"`
	Unit       string         `db:"unidade"`
	Quantity   float64        `db:"quantidade"`
	CategoryID int64          `db:"categoria_id"`
	RecipeID   sql.NullInt64  `db:"receita_id"`
}

type productRepository struct {
	q sqlx.ExtContext
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	barcode := sql.NullString{String: product.Barcode, Valid: product.Barcode != ""}
	var recipeID sql.NullInt64
	if product.RecipeID != nil {
		recipeID = sql.NullInt64{Int64: *product.RecipeID, Valid: true}
	}

	id, err := insertReturningID(ctx, r.q,
		`INSERT INTO produtos (nome_produto, data_validade, marca, codigo_barras, preco_unidade, unidade, quantidade, categoria_id, receita_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Name, product.ExpiresOn, product.Brand, barcode, product.UnitPrice,
		product.Unit, product.Quantity, product.CategoryID, recipeID,
	)
	if err != nil {
		return classify(err, "insert product")
	}
	product.ID = id
	return nil
}

func (r *productRepository) Find(ctx context.Context, id int64) (*model.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.q, &row, r.q.Rebind(
		`SELECT id, nome_produto, data_validade, marca, codigo_barras, preco_unidade, unidade, quantidade, categoria_id, receita_id
		FROM produtos WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(model.ErrProductNotFound, "product %d", id)
	}
	if err != nil {
		return nil, classify(err, "select product")
	}

	product := &model.Product{
		ID:         row.ID,
		Name:       row.Name,
		ExpiresOn:  row.ExpiresOn,
		Brand:      row.Brand,
		Barcode:    row.Barcode.String,
		UnitPrice:  row.UnitPrice,
		Unit:       row.Unit,
		Quantity:   row.Quantity,
		CategoryID: row.CategoryID,
	}
	if row.RecipeID.Valid {
		recipeID := row.RecipeID.Int64
		product.RecipeID = &recipeID
	}
	return product, nil
}

type clientRepository struct {
	q sqlx.ExtContext
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	id, err := insertReturningID(ctx, r.q,
		`INSERT INTO clientes (nome, telefone, endereco) VALUES (?, ?, ?)`,
		client.Name, client.Phone, client.Address,
	)
	if err != nil {
		return classify(err, "insert client")
	}
	client.ID = id
	return nil
}

type categoryRepository struct {
	q sqlx.ExtContext
}

func (r *categoryRepository) Create(ctx context.Context, category *model.Category) error {
	id, err := insertReturningID(ctx, r.q, `INSERT INTO categorias (categoria) VALUES (?)`, category.Name)
	if err != nil {
		return classify(err, "insert category")
	}
	category.ID = id
	return nil
}

// Package schema defines the read-only GraphQL catalogue served at
// /graphql. It resolves through the same catalog service as the REST
// routes, so filters, caching and active-only visibility are shared.
package schema

import (
	"context"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/app/services"
	gql "github.com/buddyengineerz/storefront/pkg/graphql"
	"github.com/buddyengineerz/storefront/pkg/orm"
)

// Catalog is the part of the catalog service the schema reads.
type Catalog interface {
	ListProducts(ctx context.Context, f repositories.ProductFilter, page orm.Page) (services.ProductPage, error)
	GetProduct(ctx context.Context, id uint) (models.Product, error)
	FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type node = map[string]any

var categoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Category",
	Fields: graphql.Fields{
		"id":           &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"slug":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"description":  &graphql.Field{Type: graphql.String},
		"imageUrl":     &graphql.Field{Type: graphql.String},
		"sortOrder":    &graphql.Field{Type: graphql.Int},
		"productCount": &graphql.Field{Type: graphql.Int},
	},
})

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id":              &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"slug":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"description":     &graphql.Field{Type: graphql.String},
		"price":           &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"originalPrice":   &graphql.Field{Type: graphql.Float},
		"discountPercent": &graphql.Field{Type: graphql.Int},
		"images":          &graphql.Field{Type: graphql.NewList(graphql.String)},
		"sizes":           &graphql.Field{Type: graphql.NewList(graphql.String)},
		"colors":          &graphql.Field{Type: graphql.NewList(graphql.String)},
		"tags":            &graphql.Field{Type: graphql.NewList(graphql.String)},
		"category":        &graphql.Field{Type: categoryType},
		"stock":           &graphql.Field{Type: graphql.Int},
		"inStock":         &graphql.Field{Type: graphql.Boolean},
		"featured":        &graphql.Field{Type: graphql.Boolean},
		"gender":          &graphql.Field{Type: graphql.String},
		"createdAt":       &graphql.Field{Type: graphql.String},
	},
})

var paginationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Pagination",
	Fields: graphql.Fields{
		"total":       &graphql.Field{Type: graphql.Int},
		"perPage":     &graphql.Field{Type: graphql.Int},
		"currentPage": &graphql.Field{Type: graphql.Int},
		"lastPage":    &graphql.Field{Type: graphql.Int},
	},
})

var productPageType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ProductPage",
	Fields: graphql.Fields{
		"items":      &graphql.Field{Type: graphql.NewList(productType)},
		"pagination": &graphql.Field{Type: paginationType},
	},
})

// New builds the schema over catalog.
func New(catalog Catalog) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: productPageType,
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String},
					"gender":   &graphql.ArgumentConfig{Type: graphql.String},
					"minPrice": &graphql.ArgumentConfig{Type: graphql.Float},
					"maxPrice": &graphql.ArgumentConfig{Type: graphql.Float},
					"size":     &graphql.ArgumentConfig{Type: graphql.String},
					"color":    &graphql.ArgumentConfig{Type: graphql.String},
					"featured": &graphql.ArgumentConfig{Type: graphql.Boolean},
					"inStock":  &graphql.ArgumentConfig{Type: graphql.Boolean},
					"search":   &graphql.ArgumentConfig{Type: graphql.String},
					"sort":     &graphql.ArgumentConfig{Type: graphql.String},
					"page":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: orm.DefaultPerPage},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					f, page := productFilter(p.Args)
					res, err := catalog.ListProducts(p.Context, f, page)
					if err != nil {
						return nil, err
					}
					return node{
						"items": products(res.Items),
						"pagination": node{
							"total":       int(res.Pagination.Total),
							"perPage":     res.Pagination.PerPage,
							"currentPage": res.Pagination.CurrentPage,
							"lastPage":    res.Pagination.LastPage,
						},
					}, nil
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(int)
					if id <= 0 {
						return nil, nil
					}
					prod, err := catalog.GetProduct(p.Context, uint(id))
					if err != nil {
						return nil, err
					}
					return product(prod), nil
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(categoryType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					cats, err := catalog.ListCategories(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]node, len(cats))
					for i, c := range cats {
						out[i] = category(c)
					}
					return out, nil
				},
			},
			"featured": &graphql.Field{
				Type: graphql.NewList(productType),
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 8},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					limit, _ := p.Args["limit"].(int)
					ps, err := catalog.FeaturedProducts(p.Context, limit)
					if err != nil {
						return nil, err
					}
					return products(ps), nil
				},
			},
		},
	})
	return gql.NewSchema(query)
}

func productFilter(args map[string]any) (repositories.ProductFilter, orm.Page) {
	str := func(k string) string { s, _ := args[k].(string); return s }
	f := repositories.ProductFilter{
		Category: str("category"),
		Gender:   str("gender"),
		Size:     str("size"),
		Color:    str("color"),
		Search:   str("search"),
		Sort:     str("sort"),
	}
	if v, ok := args["minPrice"].(float64); ok {
		f.MinPrice = &v
	}
	if v, ok := args["maxPrice"].(float64); ok {
		f.MaxPrice = &v
	}
	if v, ok := args["featured"].(bool); ok {
		f.Featured = &v
	}
	f.InStock, _ = args["inStock"].(bool)

	n, _ := args["page"].(int)
	per, _ := args["limit"].(int)
	return f, orm.Page{Number: n, PerPage: per}.Normalize()
}

func products(ps []models.Product) []node {
	out := make([]node, len(ps))
	for i, p := range ps {
		out[i] = product(p)
	}
	return out
}

func product(p models.Product) node {
	n := node{
		"id":              int(p.ID),
		"name":            p.Name,
		"slug":            p.Slug,
		"description":     p.Description,
		"price":           p.Price.InexactFloat64(),
		"originalPrice":   nil,
		"discountPercent": p.DiscountPercent(),
		"images":          p.Images,
		"sizes":           p.Sizes,
		"colors":          p.Colors,
		"tags":            p.Tags,
		"category":        nil,
		"stock":           p.Stock,
		"inStock":         p.Stock > 0,
		"featured":        p.Featured,
		"gender":          p.Gender,
		"createdAt":       p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.OriginalPrice != nil {
		n["originalPrice"] = p.OriginalPrice.InexactFloat64()
	}
	if p.Category != nil {
		n["category"] = category(*p.Category)
	}
	return n
}

func category(c models.Category) node {
	return node{
		"id":           int(c.ID),
		"name":         c.Name,
		"slug":         c.Slug,
		"description":  c.Description,
		"imageUrl":     c.ImageURL,
		"sortOrder":    c.SortOrder,
		"productCount": int(c.ProductCount),
	}
}

package seeders

import (
	"context"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
)

func init() {
	Register("categories", seedCategories)
	Register("products", seedProducts)
}

var demoCategories = []models.Category{
	{Name: "Oversized Tees", Description: "Drop-shoulder heavyweight cotton tees.", SortOrder: 1},
	{Name: "Hoodies", Description: "Fleece-lined hoodies for late-night builds.", SortOrder: 2},
	{Name: "Joggers", Description: "Tapered joggers with zip pockets.", SortOrder: 3},
	{Name: "Accessories", Description: "Caps, socks and laptop sleeves.", SortOrder: 4},
}

func seedCategories(_ context.Context, db *gorm.DB) error {
	for _, c := range demoCategories {
		c.Slug = slug.Make(c.Name)
		c.IsActive = true
		if err := db.Where(models.Category{Slug: c.Slug}).FirstOrCreate(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

type demoProduct struct {
	name     string
	category string
	price    int64
	original int64
	gender   string
	stock    int
	featured bool
	sizes    []string
	colors   []string
	tags     []string
}

var apparelSizes = []string{"S", "M", "L", "XL", "XXL"}

var demoProducts = []demoProduct{
	{"Segfault Oversized Tee", "Oversized Tees", 799, 999, models.GenderUnisex, 40, true, apparelSizes, []string{"Black", "White"}, []string{"c", "debugging"}},
	{"It Works On My Machine Tee", "Oversized Tees", 699, 0, models.GenderUnisex, 55, true, apparelSizes, []string{"Black", "Navy"}, []string{"devops", "humour"}},
	{"Rubber Duck Debugger Tee", "Oversized Tees", 749, 899, models.GenderWomen, 18, false, apparelSizes, []string{"Lavender", "White"}, []string{"debugging"}},
	{"Null Pointer Tee", "Oversized Tees", 649, 0, models.GenderMen, 3, false, apparelSizes, []string{"Olive"}, []string{"java"}},
	{"Merge Conflict Hoodie", "Hoodies", 1799, 2199, models.GenderUnisex, 25, true, apparelSizes, []string{"Charcoal", "Maroon"}, []string{"git"}},
	{"Kernel Panic Hoodie", "Hoodies", 1899, 0, models.GenderMen, 12, false, apparelSizes, []string{"Black"}, []string{"linux"}},
	{"Async Await Zip Hoodie", "Hoodies", 2099, 2499, models.GenderWomen, 9, false, apparelSizes, []string{"Sage", "Cream"}, []string{"javascript"}},
	{"Stack Trace Joggers", "Joggers", 1299, 1499, models.GenderUnisex, 30, false, apparelSizes, []string{"Black", "Grey"}, []string{"comfort"}},
	{"Compile Time Joggers", "Joggers", 1199, 0, models.GenderMen, 0, false, apparelSizes, []string{"Navy"}, []string{"rust"}},
	{"Sudo Cap", "Accessories", 499, 599, models.GenderUnisex, 60, true, nil, []string{"Black"}, []string{"linux", "cap"}},
	{"Off-By-One Socks (Pack of 3)", "Accessories", 349, 0, models.GenderUnisex, 100, false, []string{"Free"}, nil, []string{"socks"}},
	{"Localhost Laptop Sleeve", "Accessories", 899, 1099, models.GenderUnisex, 4, false, []string{"13in", "15in"}, []string{"Grey"}, []string{"laptop"}},
}

func seedProducts(ctx context.Context, db *gorm.DB) error {
	var cats []models.Category
	if err := db.Find(&cats).Error; err != nil {
		return err
	}
	byName := make(map[string]uint, len(cats))
	for _, c := range cats {
		byName[c.Name] = c.ID
	}

	for _, d := range demoProducts {
		s := slug.Make(d.name)
		p := models.Product{
			Name:        d.name,
			Slug:        s,
			Description: d.name + " in 240 GSM combed cotton. Printed in Bengaluru.",
			Price:       decimal.NewFromInt(d.price),
			Images:      []string{"/storage/demo/" + s + ".jpg"},
			Sizes:       d.sizes,
			Colors:      d.colors,
			Tags:        d.tags,
			Stock:       d.stock,
			Featured:    d.featured,
			Gender:      d.gender,
			IsActive:    true,
		}
		if d.original > 0 {
			o := decimal.NewFromInt(d.original)
			p.OriginalPrice = &o
		}
		if id, ok := byName[d.category]; ok {
			p.CategoryID = &id
		}
		if err := db.WithContext(ctx).Where(models.Product{Slug: s}).FirstOrCreate(&p).Error; err != nil {
			return err
		}
	}
	return nil
}

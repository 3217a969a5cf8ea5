package services

import (
	"context"
	"io"
	"strings"

	"github.com/tealeg/xlsx"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/apperr"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportTimeFmt   = "2006-01-02 15:04:05"
)

// ExportService writes admin spreadsheets.
type ExportService struct {
	products *repositories.ProductRepository
	orders   *repositories.OrderRepository
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{
		products: repositories.NewProductRepository(db),
		orders:   repositories.NewOrderRepository(db),
	}
}

// Products writes every product, including inactive ones, as one sheet.
func (s *ExportService) Products(ctx context.Context, w io.Writer) error {
	products, err := s.products.All(ctx)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Could not build export", err)
	}
	header(sheet, "ID", "Name", "Slug", "Category", "Gender", "Price", "Original Price",
		"Discount %", "Stock", "Sizes", "Colors", "Featured", "Active", "Created At")

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetInt(int(p.ID))
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Slug)
		category := ""
		if p.Category != nil {
			category = p.Category.Name
		}
		row.AddCell().SetString(category)
		row.AddCell().SetString(p.Gender)
		row.AddCell().SetFloat(p.Price.InexactFloat64())
		if p.OriginalPrice != nil {
			row.AddCell().SetFloat(p.OriginalPrice.InexactFloat64())
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetInt(p.DiscountPercent())
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetString(strings.Join(p.Sizes, ", "))
		row.AddCell().SetString(strings.Join(p.Colors, ", "))
		row.AddCell().SetBool(p.Featured)
		row.AddCell().SetBool(p.IsActive)
		row.AddCell().SetString(p.CreatedAt.Format(exportTimeFmt))
	}
	return file.Write(w)
}

// Orders writes one sheet of orders and one of their items.
func (s *ExportService) Orders(ctx context.Context, f repositories.OrderFilter, w io.Writer) error {
	orders, err := s.orders.All(ctx, f)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Could not build export", err)
	}
	items, err := file.AddSheet("Items")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Could not build export", err)
	}
	header(sheet, "Order Number", "Customer", "Status", "Payment Status", "Payment Method",
		"Items", "Subtotal", "Shipping", "Tax", "Total", "City", "Pincode", "Placed At")
	header(items, "Order Number", "Product ID", "Product", "Size", "Color", "Price", "Quantity", "Line Total")

	for _, o := range orders {
		customer := ""
		if o.User != nil {
			customer = o.User.Email
		}
		row := sheet.AddRow()
		row.AddCell().SetString(o.OrderNumber)
		row.AddCell().SetString(customer)
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(string(o.PaymentStatus))
		row.AddCell().SetString(o.PaymentMethod)
		row.AddCell().SetInt(o.ItemCount())
		row.AddCell().SetFloat(o.Subtotal.InexactFloat64())
		row.AddCell().SetFloat(o.ShippingCost.InexactFloat64())
		row.AddCell().SetFloat(o.TaxAmount.InexactFloat64())
		row.AddCell().SetFloat(o.TotalAmount.InexactFloat64())
		row.AddCell().SetString(o.ShippingAddress.City)
		row.AddCell().SetString(o.ShippingAddress.Pincode)
		row.AddCell().SetString(o.CreatedAt.Format(exportTimeFmt))

		for _, it := range o.Items {
			r := items.AddRow()
			r.AddCell().SetString(o.OrderNumber)
			r.AddCell().SetInt(int(it.ProductID))
			r.AddCell().SetString(it.ProductName)
			r.AddCell().SetString(it.Size)
			r.AddCell().SetString(it.Color)
			r.AddCell().SetFloat(it.Price.InexactFloat64())
			r.AddCell().SetInt(it.Quantity)
			r.AddCell().SetFloat(it.LineTotal.InexactFloat64())
		}
	}
	return file.Write(w)
}

func header(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		row.AddCell().SetString(t)
	}
}

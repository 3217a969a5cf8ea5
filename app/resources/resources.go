// Package resources shapes models into the storefront's API payloads.
package resources

import (
	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/resource"
)

// Product is the public product shape. It adds the derived discount and
// stock flags the storefront renders on cards.
func Product(p models.Product) resource.Map {
	out := resource.Map{
		"id":               p.ID,
		"name":             p.Name,
		"slug":             p.Slug,
		"description":      p.Description,
		"price":            p.Price,
		"original_price":   p.OriginalPrice,
		"discount_percent": p.DiscountPercent(),
		"images":           nonNil(p.Images),
		"sizes":            nonNil(p.Sizes),
		"colors":           nonNil(p.Colors),
		"tags":             nonNil(p.Tags),
		"category_id":      p.CategoryID,
		"category":         nil,
		"stock":            p.Stock,
		"in_stock":         p.Stock > 0,
		"featured":         p.Featured,
		"gender":           p.Gender,
		"created_at":       p.CreatedAt,
	}
	if p.Category != nil {
		out["category"] = resource.Map{"id": p.Category.ID, "name": p.Category.Name, "slug": p.Category.Slug}
	}
	return out
}

// AdminProduct also exposes the fields only the back office edits.
func AdminProduct(p models.Product) resource.Map {
	return resource.Merge(Product(p), resource.Map{
		"is_active":  p.IsActive,
		"updated_at": p.UpdatedAt,
	})
}

func Category(c models.Category) resource.Map {
	return resource.Map{
		"id":            c.ID,
		"name":          c.Name,
		"slug":          c.Slug,
		"description":   c.Description,
		"image_url":     c.ImageURL,
		"sort_order":    c.SortOrder,
		"product_count": c.ProductCount,
	}
}

func AdminCategory(c models.Category) resource.Map {
	return resource.Merge(Category(c), resource.Map{"is_active": c.IsActive})
}

// Order is shared by the customer and admin views.
func Order(o models.Order) resource.Map {
	out := resource.Map{
		"id":               o.ID,
		"order_number":     o.OrderNumber,
		"status":           o.Status,
		"payment_status":   o.PaymentStatus,
		"payment_method":   o.PaymentMethod,
		"payment_id":       o.PaymentID,
		"subtotal":         o.Subtotal,
		"shipping_cost":    o.ShippingCost,
		"tax_amount":       o.TaxAmount,
		"total_amount":     o.TotalAmount,
		"shipping_address": o.ShippingAddress,
		"notes":            o.Notes,
		"item_count":       o.ItemCount(),
		"items":            resource.Many(o.Items, OrderItem),
		"cancelled_at":     o.CancelledAt,
		"cancel_reason":    o.CancelReason,
		"created_at":       o.CreatedAt,
		"updated_at":       o.UpdatedAt,
	}
	if o.User != nil {
		out["customer"] = resource.Map{"id": o.User.ID, "email": o.User.Email}
	}
	return out
}

func OrderItem(it models.OrderItem) resource.Map {
	return resource.Map{
		"id":            it.ID,
		"product_id":    it.ProductID,
		"product_name":  it.ProductName,
		"product_image": it.ProductImage,
		"size":          it.Size,
		"color":         it.Color,
		"price":         it.Price,
		"quantity":      it.Quantity,
		"line_total":    it.LineTotal,
	}
}

// OrderEvent is the compact shape pushed to the admin live feed.
func OrderEvent(o models.Order) resource.Map {
	return resource.Map{
		"id":             o.ID,
		"order_number":   o.OrderNumber,
		"user_id":        o.UserID,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"payment_method": o.PaymentMethod,
		"total_amount":   o.TotalAmount,
		"item_count":     o.ItemCount(),
		"created_at":     o.CreatedAt,
	}
}

func Address(a models.Address) resource.Map {
	return resource.Map{
		"id":         a.ID,
		"type":       a.Type,
		"name":       a.Name,
		"phone":      a.Phone,
		"line1":      a.Line1,
		"line2":      a.Line2,
		"city":       a.City,
		"state":      a.State,
		"pincode":    a.Pincode,
		"country":    a.Country,
		"is_default": a.IsDefault,
		"created_at": a.CreatedAt,
		"updated_at": a.UpdatedAt,
	}
}

func AdminUser(a models.AdminUser) resource.Map {
	out := resource.Map{"user_id": a.UserID, "role": a.Role, "created_at": a.CreatedAt}
	if a.User != nil {
		out["email"] = a.User.Email
	}
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

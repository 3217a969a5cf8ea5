// Package resource shapes models into API payloads.
//
//	func Product(p models.Product) resource.Map {
//	    return resource.Map{"id": p.ID, "name": p.Name, "discount_percent": p.DiscountPercent()}
//	}
//
//	x.Success(resource.One(p, Product))
//	x.Paginated(resource.Many(items, Product), pagination)
package resource

// Map is the output of a transformer.
type Map = map[string]any

// Transformer converts one model into its API shape.
type Transformer[T any] func(T) Map

// One transforms a single value.
func One[T any](v T, t Transformer[T]) Map { return t(v) }

// Many transforms a slice. A nil slice becomes an empty one so it encodes
// as [] rather than null.
func Many[T any](items []T, t Transformer[T]) []Map {
	out := make([]Map, len(items))
	for i, v := range items {
		out[i] = t(v)
	}
	return out
}

// Merge copies extra into base and returns base.
func Merge(base Map, extra Map) Map {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

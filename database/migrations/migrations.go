// Package migrations holds the storefront schema. Each file registers its
// migrations from init(); import the package for side effects.
package migrations

package cache

import "strings"

// KeyCoupon returns the cache key for a coupon code. Codes are case-insensitive.
func KeyCoupon(code string) string {
	return "coupon:" + strings.ToLower(strings.TrimSpace(code))
}

// KeyMenu is the cache key holding the active product list.
const KeyMenu = "menu:active"

// KeyProduct returns the cache key for a single product.
func KeyProduct(id string) string {
	return "menu:product:" + id
}

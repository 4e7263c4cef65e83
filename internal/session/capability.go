package session

import "github.com/fjod/smartcart/internal/domain"

type Capability string

const (
	// CapShopping covers cart registration, scanning, checkout and order history.
	CapShopping Capability = "shopping"
	// CapCatalog covers product management.
	CapCatalog Capability = "catalog"
)

// AllowedFor reports whether role may use the capability. Roles do not
// inherit each other's capabilities.
func (c Capability) AllowedFor(role domain.Role) bool {
	switch c {
	case CapShopping:
		return role == domain.RoleUser
	case CapCatalog:
		return role == domain.RoleAdmin
	}
	return false
}

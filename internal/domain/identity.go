package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// String representation (for logging)
func (r Role) String() string {
	return string(r)
}

// Identity is the authenticated user of the device.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

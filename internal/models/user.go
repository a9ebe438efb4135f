package models

import "time"

// UserRole represents the supply-chain roles recognised by the platform.
type UserRole string

const (
	RoleFarmer      UserRole = "Farmer"
	RoleDistributor UserRole = "Distributor"
	RoleRetailer    UserRole = "Retailer"
	RoleBuyer       UserRole = "Buyer"
	RoleAdmin       UserRole = "Admin"
)

// UserStatus captures the account lifecycle. Accounts are never hard-deleted.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusPending  UserStatus = "pending"
	UserStatusInactive UserStatus = "inactive"
)

// User represents a platform participant stored in the users table.
// Role is immutable after registration; status is mutated by Admin only.
type User struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	Phone        string     `db:"phone" json:"phone"`
	Role         UserRole   `db:"role" json:"role"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Status       UserStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicProfile is the subset of user fields exposed on trace views.
type PublicProfile struct {
	Name  string `db:"name" json:"name"`
	Phone string `db:"phone" json:"phone"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Status   *UserStatus
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ValidRole reports whether the given role is one the platform knows.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleFarmer, RoleDistributor, RoleRetailer, RoleBuyer, RoleAdmin:
		return true
	}
	return false
}

package model

import "time"

type UserRole string

const (
	Admin    UserRole = "admin"
	Manager  UserRole = "manager"
	Employee UserRole = "employee"
)

// swagger:model User
type User struct {
	BaseModel
	Name       string   `gorm:"size:100;not null" json:"name"`
	Email      string   `gorm:"size:100;unique;not null" json:"email"`
	Password   string   `gorm:"size:100;not null" json:"-"`
	Role       UserRole `gorm:"type:enum('admin','manager','employee');default:'employee'" json:"role"`
	Department string   `gorm:"size:100" json:"department"`
	Avatar     string   `gorm:"size:255" json:"avatar"`
	Disabled   bool     `gorm:"default:false" json:"disabled"`
	LastLogin  time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}

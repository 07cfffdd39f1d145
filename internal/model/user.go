package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a user's authorization role.
type Role string

const (
	RoleStudent   Role = "student"
	RoleAdmin     Role = "admin"
	RoleConductor Role = "conductor"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// User is an account. Students and admins are identified by an institutional
// email; conductors by a phone number.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Email        *string   `gorm:"size:256;uniqueIndex" json:"email,omitempty"`
	Phone        *string   `gorm:"size:32;uniqueIndex" json:"phone,omitempty"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Role         Role      `gorm:"size:16;not null;default:student" json:"role"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns an identifier.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// ContactEmail returns the user's email or "" when none is set.
func (u *User) ContactEmail() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// ContactPhone returns the user's phone or "" when none is set.
func (u *User) ContactPhone() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// NewStudent builds a student identified by an email in the given domain.
func NewStudent(name, email, domain string) (*User, error) {
	return newEmailUser(RoleStudent, name, email, domain)
}

// NewAdmin builds an admin identified by an email in the given domain.
func NewAdmin(name, email, domain string) (*User, error) {
	return newEmailUser(RoleAdmin, name, email, domain)
}

// NewConductor builds a conductor identified by a phone number.
func NewConductor(name, phone string) (*User, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !phoneRe.MatchString(phone) {
		return nil, fmt.Errorf("please provide a valid phone number")
	}
	return &User{Name: name, Phone: &phone, Role: RoleConductor}, nil
}

// ValidEmail reports whether email belongs to the institutional domain.
func ValidEmail(email, domain string) bool {
	re := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@` + regexp.QuoteMeta(domain) + `$`)
	return re.MatchString(email)
}

func newEmailUser(role Role, name, email, domain string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !ValidEmail(email, strings.ToLower(domain)) {
		return nil, fmt.Errorf("please use a valid @%s email", domain)
	}
	return &User{Name: name, Email: &email, Role: role}, nil
}

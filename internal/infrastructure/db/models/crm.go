package models

import "time"

type User struct {
	ID        string `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string `gorm:"size:320;not null"`
	Name      string `gorm:"size:255;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

type Customer struct {
	ID         string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string  `gorm:"size:255;not null"`
	Siret      *string `gorm:"size:32"`
	LeadOrigin string  `gorm:"size:255;not null;default:''"`
	UserID     *string `gorm:"type:uuid"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Customer) TableName() string {
	return "customers"
}

type Contact struct {
	ID         string `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID string `gorm:"type:uuid;not null;index"`
	FirstName  string `gorm:"size:120;not null;default:''"`
	LastName   string `gorm:"size:120;not null;default:''"`
	Email      string `gorm:"size:320;not null;default:''"`
	Phone      string `gorm:"size:32;not null;default:''"`
	Mobile     string `gorm:"size:32;not null;default:''"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Contact) TableName() string {
	return "contacts"
}

type Provider struct {
	ID        string `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

func (Provider) TableName() string {
	return "providers"
}

type Energy struct {
	ID          string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID  string     `gorm:"type:uuid;not null;index"`
	Type        string     `gorm:"type:text;not null"`
	Code        *string    `gorm:"size:64"`
	ProviderID  *string    `gorm:"type:uuid"`
	Provider    *Provider  `gorm:"foreignKey:ProviderID"`
	ContractEnd *time.Time `gorm:"type:date"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Energy) TableName() string {
	return "energies"
}

type Comment struct {
	ID         string `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID string `gorm:"type:uuid;not null;index"`
	Content    string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

func (Comment) TableName() string {
	return "comments"
}

package models

import "time"

type Role struct {
	ID   int    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type User struct {
	ID             string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrganizationID *string   `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	Roles          []Role    `gorm:"many2many:user_roles" json:"roles"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Organization struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Country   string    `gorm:"size:2;not null;default:FR" json:"country"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Subscription struct {
	ID             string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrganizationID string     `gorm:"type:uuid;index;not null" json:"organization_id"`
	Plan           string     `gorm:"not null" json:"plan"`
	Status         string     `gorm:"not null;default:active" json:"status"`
	StartsAt       time.Time  `gorm:"not null" json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Payment struct {
	ID             string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubscriptionID string    `gorm:"type:uuid;index;not null" json:"subscription_id"`
	Provider       string    `gorm:"not null" json:"provider"`
	ProviderRef    *string   `json:"provider_ref,omitempty"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	Currency       string    `gorm:"size:3;not null;default:EUR" json:"currency"`
	Status         string    `gorm:"not null;default:pending" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DocumentRequest groups the documents an organization asks a user to provide.
type DocumentRequest struct {
	ID             string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrganizationID string    `gorm:"type:uuid;index;not null" json:"organization_id"`
	RequestedBy    string    `gorm:"type:uuid;not null" json:"requested_by"`
	Subject        string    `gorm:"not null" json:"subject"`
	Status         string    `gorm:"not null;default:open" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type AuditLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *string   `gorm:"type:uuid" json:"user_id,omitempty"`
	Action     string    `gorm:"not null" json:"action"`
	Resource   string    `gorm:"not null" json:"resource"`
	ResourceID *string   `json:"resource_id,omitempty"`
	Details    JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    string     `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

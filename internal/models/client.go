package models

import "time"

// Client is an end subscriber owned by a reseller.
// A nil ExpirationDate means lifetime access.
type Client struct {
	ID              int64            `json:"id"`
	Username        string           `json:"username"`
	PasswordHash    string           `json:"-"`
	ExpirationDate  *time.Time       `json:"expirationDate"`
	ResellerID      int64            `json:"resellerId"`
	M3UURL          *string          `json:"m3uUrl"`
	SourcePlaylists []SourcePlaylist `json:"sourcePlaylists,omitempty"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty"`
}

// Expired reports whether the client's access has lapsed at now.
func (c Client) Expired(now time.Time) bool {
	return c.ExpirationDate != nil && now.After(*c.ExpirationDate)
}

// User is a panel operator (admin or reseller). CreatedByID is the
// operator who created the account, nil for seeded admins.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Email        *string    `json:"email,omitempty"`
	WhatsApp     *string    `json:"whatsapp,omitempty"`
	CreatedByID  *int64     `json:"createdById,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// RegistrationToken lets someone create their own operator account with
// Role. It can be redeemed once, before ExpiresAt.
type RegistrationToken struct {
	ID          int64      `json:"id"`
	Token       string     `json:"token"`
	Role        Role       `json:"role"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
	CreatedByID int64      `json:"createdById"`
}

// Usable reports whether t can still be redeemed at now.
func (t RegistrationToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// Package model defines the core data structures for tally.
package model

import "time"

// Category is an owner-scoped spending category.
// Names are unique per owner, compared case-insensitively.
type Category struct {
	CreatedAt time.Time
	Name      string
	Rules     []Rule
	ID        int64
	OwnerID   int64
}

// Rule maps a keyword pattern to its category.
// KeywordPattern may contain "*" standing for any run of characters.
type Rule struct {
	CreatedAt      time.Time `json:"created_at"`
	KeywordPattern string    `json:"keyword_pattern"`
	CategoryName   string    `json:"category_name"`
	ID             int64     `json:"id"`
	OwnerID        int64     `json:"owner_id"`
	CategoryID     int64     `json:"category_id"`
}

// User owns categories, rules and transactions.
type User struct {
	CreatedAt time.Time
	Email     string
	ID        int64
}

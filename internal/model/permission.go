// Package model defines the records kept in the journal.
//
// Three record types exist: Permission (a journaled money permission
// statement), Category and Tag. Permissions reference categories and tags
// by NAME, not by id. The service layer keeps those copies in step when a
// category or tag is renamed.
package model

import (
	"slices"
	"strings"
	"time"
)

// Impact bounds for Permission.EmotionalImpact. 0 means "not rated".
const (
	MinEmotionalImpact  = 0
	MaxEmotionalImpact  = 10
	HighImpactThreshold = 8
)

// Permission is a single journaled affirmation about money.
//
// Optional text fields are pointers: nil means "never set". Date is the day
// the permission applies to and is unrelated to CreatedAt.
type Permission struct {
	ID              string    `json:"id"              db:"id"`
	Statement       string    `json:"statement"       db:"statement"`
	Date            time.Time `json:"date"            db:"date"`
	Category        *string   `json:"category"        db:"category"`
	EmotionalTags   []string  `json:"emotionalTags"   db:"emotional_tags"`
	ExpectedImpact  *string   `json:"expectedImpact"  db:"expected_impact"`
	ActualOutcome   *string   `json:"actualOutcome"   db:"actual_outcome"`
	EmotionalImpact int       `json:"emotionalImpact" db:"emotional_impact"`
	CreatedAt       time.Time `json:"createdAt"       db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt"       db:"updated_at"`
}

// HasOutcome reports whether an actual outcome was recorded.
// Whitespace-only outcomes do not count.
func (p Permission) HasOutcome() bool {
	return p.ActualOutcome != nil && strings.TrimSpace(*p.ActualOutcome) != ""
}

// HasTag reports whether name is one of the permission's emotional tags.
func (p Permission) HasTag(name string) bool {
	return slices.Contains(p.EmotionalTags, name)
}

// InCategory reports whether the permission is filed under the named category.
func (p Permission) InCategory(name string) bool {
	return p.Category != nil && *p.Category == name
}

// Clone returns a deep copy, so a caller mutating the copy never touches
// records held elsewhere.
func (p Permission) Clone() Permission {
	p.Category = cloneString(p.Category)
	p.ExpectedImpact = cloneString(p.ExpectedImpact)
	p.ActualOutcome = cloneString(p.ActualOutcome)
	p.EmotionalTags = slices.Clone(p.EmotionalTags)
	if p.EmotionalTags == nil {
		p.EmotionalTags = []string{}
	}
	return p
}

// StringPtr returns nil for an empty string and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

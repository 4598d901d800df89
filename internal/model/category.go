package model

// Category is a user-defined grouping for permissions.
//
// Order is assigned from the category count at creation time and never
// renumbered, so it is a creation-order hint rather than a dense sequence.
type Category struct {
	ID       string  `json:"id"       db:"id"`
	Name     string  `json:"name"     db:"name"`
	IconName *string `json:"iconName" db:"icon_name"`
	ColorHex *string `json:"colorHex" db:"color_hex"`
	Order    int     `json:"order"    db:"sort_order"`
}

// Tag is a user-defined emotional descriptor attached to permissions by name.
type Tag struct {
	ID       string  `json:"id"       db:"id"`
	Name     string  `json:"name"     db:"name"`
	ColorHex *string `json:"colorHex" db:"color_hex"`
	IconName *string `json:"iconName" db:"icon_name"`
}

package domain

// Item is one catalog entry. Only ID, Publisher and PremiumOffer take part in
// authorization; the remaining fields are display data passed through untouched.
type Item struct {
	ID           string  `json:"id"`
	Title        string  `json:"title,omitempty"`
	Author       string  `json:"author,omitempty"`
	Publisher    string  `json:"publisher"`
	Year         int     `json:"year,omitempty"`
	Category     string  `json:"category,omitempty"`
	Price        float64 `json:"price,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Cover        string  `json:"cover,omitempty"`
	Description  string  `json:"description,omitempty"`
	PremiumOffer bool    `json:"premiumOffer"`
}

// ResourceOwner pairs a catalog item id with the username that owns it.
type ResourceOwner struct {
	ResourceID string
	Owner      string
}

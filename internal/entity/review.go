package entity

type Review struct {
	ID        string `json:"_id,omitempty"`
	Product   string `json:"product"`
	User      *User  `json:"user,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ProductReviews is the payload of GET /reviews/product/:id.
type ProductReviews struct {
	Reviews   []Review `json:"reviews"`
	AvgRating float64  `json:"avgRating"`
}

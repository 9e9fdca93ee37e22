package entity

type Address struct {
	ID        string `json:"_id,omitempty"`
	Label     string `json:"label,omitempty"`
	FullName  string `json:"fullName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// Shipping returns the subset of the address sent with an order.
func (a Address) Shipping() ShippingAddress {
	return ShippingAddress{
		FullName: a.FullName,
		Address:  a.Address,
		City:     a.City,
		State:    a.State,
		ZipCode:  a.ZipCode,
		Phone:    a.Phone,
	}
}

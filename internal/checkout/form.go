package checkout

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

// Form is the shopper's contact and shipping details.
type Form struct {
	Email     string  `json:"email" validate:"loose_email"`
	Phone     string  `json:"phone" validate:"trimmed_required"`
	FirstName string  `json:"firstName" validate:"trimmed_required"`
	LastName  string  `json:"lastName" validate:"trimmed_required"`
	Address   string  `json:"address" validate:"trimmed_required"`
	Apartment *string `json:"apartment,omitempty"`
	City      string  `json:"city" validate:"trimmed_required"`
	State     string  `json:"state" validate:"trimmed_required"`
	ZipCode   string  `json:"zipCode" validate:"trimmed_required"`
	Country   string  `json:"country,omitempty"`
}

// Validate reports every failing field at once.
func (f Form) Validate() error {
	return validation.Struct(f)
}

// ShippingAddress snapshots the form for the order row. A blank country
// falls back to defaultCountry.
func (f Form) ShippingAddress(defaultCountry string) types.ShippingAddress {
	country := strings.TrimSpace(f.Country)
	if country == "" {
		country = defaultCountry
	}
	var apartment *string
	if f.Apartment != nil {
		if apt := strings.TrimSpace(*f.Apartment); apt != "" {
			apartment = &apt
		}
	}
	return types.ShippingAddress{
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Address:   strings.TrimSpace(f.Address),
		Apartment: apartment,
		City:      strings.TrimSpace(f.City),
		State:     strings.TrimSpace(f.State),
		ZipCode:   strings.TrimSpace(f.ZipCode),
		Country:   country,
	}
}

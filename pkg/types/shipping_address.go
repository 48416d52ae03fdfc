package types

import (
	"fmt"
	"strings"
)

// ShippingAddress is the snapshot stored with each order as JSON.
type ShippingAddress struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Address   string  `json:"address"`
	Apartment *string `json:"apartment,omitempty"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	ZipCode   string  `json:"zipCode"`
	Country   string  `json:"country"`
}

// FullName joins first and last name.
func (a ShippingAddress) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Lines renders the address as display lines for email bodies.
func (a ShippingAddress) Lines() []string {
	lines := []string{a.FullName(), a.Address}
	if a.Apartment != nil && strings.TrimSpace(*a.Apartment) != "" {
		lines = append(lines, strings.TrimSpace(*a.Apartment))
	}
	lines = append(lines, fmt.Sprintf("%s, %s %s", a.City, a.State, a.ZipCode))
	if a.Country != "" {
		lines = append(lines, a.Country)
	}
	return lines
}

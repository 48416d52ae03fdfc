package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShippingAddressLines(t *testing.T) {
	apt := " 4B "
	addr := ShippingAddress{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "1 Main St",
		Apartment: &apt,
		City:      "Springfield",
		State:     "IL",
		ZipCode:   "62701",
		Country:   "United States",
	}

	require.Equal(t, []string{
		"Ada Lovelace",
		"1 Main St",
		"4B",
		"Springfield, IL 62701",
		"United States",
	}, addr.Lines())
}

func TestShippingAddressLinesSkipsBlankApartment(t *testing.T) {
	blank := "  "
	addr := ShippingAddress{FirstName: "Ada", Address: "1 Main St", Apartment: &blank, City: "X", State: "Y", ZipCode: "1"}
	require.Len(t, addr.Lines(), 3)
}

package enums

type DonationStatus string

const DonationStatusCompleted DonationStatus = "completed"

func (d DonationStatus) String() string {
	return string(d)
}

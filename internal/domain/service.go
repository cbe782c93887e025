package domain

// Service is a priced, timed offering of a master. ID is assigned by the store
// and is opaque to the bot.
type Service struct {
	ID       string `json:"id"`
	MasterID int64  `json:"master_id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Duration int    `json:"duration"`
}

// ServiceFilter selects services for deletion. A zero MasterID matches
// services of any master.
type ServiceFilter struct {
	ID       string
	MasterID int64
}

// OwnerChecked reports whether the filter is restricted to one master.
func (f ServiceFilter) OwnerChecked() bool {
	return f.MasterID != 0
}

package domain

// Booking is a client appointment. The bot only reads bookings; they are
// created by an external booking form.
type Booking struct {
	ID          string
	MasterID    int64
	ServiceID   *string
	ServiceName *string
	ClientName  string
	ClientPhone *string
	BookingTime string
	Status      *string
}

// Phone returns the client phone or the fallback when it is absent.
func (b Booking) Phone(fallback string) string {
	if b.ClientPhone == nil || *b.ClientPhone == "" {
		return fallback
	}
	return *b.ClientPhone
}

// Service returns the joined service name or the fallback when the join is
// absent.
func (b Booking) Service(fallback string) string {
	if b.ServiceName == nil || *b.ServiceName == "" {
		return fallback
	}
	return *b.ServiceName
}

package domain

// Default working hours assigned to every master on /start. Masters cannot
// change them yet.
const (
	DefaultWorkStart = "09:00"
	DefaultWorkEnd   = "18:00"

	// UnknownUsername is stored when the Telegram user has no public handle.
	UnknownUsername = "Unknown"
)

// Master is the service provider operating the bot. ID is the Telegram user id.
type Master struct {
	ID        int64  `bson:"id" json:"id"`
	Username  string `bson:"username" json:"username"`
	FullName  string `bson:"full_name" json:"full_name"`
	WorkStart string `bson:"work_start" json:"work_start"`
	WorkEnd   string `bson:"work_end" json:"work_end"`
}

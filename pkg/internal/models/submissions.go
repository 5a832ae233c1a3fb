package models

// Submission is one participant's recorded choice for a poll.
// The (poll_id, participant_key) index is the authoritative duplicate guard.
type Submission struct {
	BaseModel

	PollID         uint   `json:"poll_id" gorm:"uniqueIndex:idx_submission_participant"`
	OptionID       uint   `json:"option_id" gorm:"index"`
	ParticipantKey string `json:"-" gorm:"size:128;uniqueIndex:idx_submission_participant"`
	AccountID      *uint  `json:"account_id" gorm:"index"`
}

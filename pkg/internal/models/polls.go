package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PollStatusActive = "active"
	PollStatusClosed = "closed"
)

type Poll struct {
	BaseModel

	Question               string         `json:"question" gorm:"size:500"`
	Deadline               time.Time      `json:"deadline" gorm:"index"`
	AccessCode             string         `json:"access_code" gorm:"uniqueIndex;size:16"`
	Status                 string         `json:"status" gorm:"size:16;index"`
	Language               string         `json:"language" gorm:"size:8;index"`
	ShowResultsWhileVoting bool           `json:"show_results_while_voting"`
	TotalSubmissions       int64          `json:"total_submissions"`
	ClosedAt               *time.Time     `json:"closed_at"`
	FinalMetric            datatypes.JSON `json:"-"`
	AccountID              *uint          `json:"account_id" gorm:"index"`

	Options []PollOption `json:"options" gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
}

type PollOption struct {
	BaseModel

	PollID          uint   `json:"poll_id" gorm:"uniqueIndex:idx_poll_option_position"`
	Text            string `json:"text" gorm:"size:255"`
	Position        int    `json:"position" gorm:"uniqueIndex:idx_poll_option_position"`
	SubmissionCount int64  `json:"-"`
}

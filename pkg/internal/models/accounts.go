package models

type Account struct {
	BaseModel

	Email        string `json:"email" gorm:"uniqueIndex;size:255"`
	PasswordHash string `json:"-"`

	Polls []Poll `json:"-" gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

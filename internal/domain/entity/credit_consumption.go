package entity

import "time"

// CreditConsumption 积分扣减流水，request_id 唯一保证同一请求只计费一次
type CreditConsumption struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	RequestID string    `json:"request_id" gorm:"type:varchar(128);uniqueIndex;not null"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	Credits   int       `json:"credits" gorm:"not null;default:0"`
	WordCount int       `json:"word_count" gorm:"not null;default:0"`
	Partial   bool      `json:"partial" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (CreditConsumption) TableName() string {
	return "credit_consumptions"
}

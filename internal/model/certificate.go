package model

import "time"

// Certificate 结业证书，完成指派时签发
// swagger:model Certificate
type Certificate struct {
	BaseModel
	UserID    uint      `gorm:"index;not null" json:"userId"`
	CourseID  string    `gorm:"index;type:varchar(36);not null" json:"courseId"`
	Code      string    `gorm:"size:36;unique;not null" json:"code"` // 对外核验码
	IssueDate time.Time `json:"issueDate"`
}

func (Certificate) TableName() string {
	return "certificates"
}

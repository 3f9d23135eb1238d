package model

import "time"

type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "pending"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentOverdue    AssignmentStatus = "overdue"
)

// Assignment 课程指派记录
// swagger:model Assignment
type Assignment struct {
	BaseModel
	UserID        uint             `gorm:"index;not null" json:"userId"`
	CourseID      string           `gorm:"index;type:varchar(36);not null" json:"courseId"`
	AssignedBy    uint             `gorm:"not null" json:"assignedBy"`
	AssignedDate  time.Time        `json:"assignedDate"`
	DueDate       *time.Time       `json:"dueDate,omitempty"`
	Status        AssignmentStatus `gorm:"type:enum('pending','in_progress','completed','overdue');default:'pending'" json:"status"`
	Progress      int              `gorm:"default:0" json:"progress"` // 0-100
	Score         *int             `json:"score,omitempty"`           // 各模块测验的平均分
	CompletedDate *time.Time       `json:"completedDate,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

package service

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

type AssignmentService struct {
	assignmentRepo  *repository.AssignmentRepository
	certificateRepo *repository.CertificateRepository
	courseRepo      *repository.CourseRepository
	userRepo        *repository.UserRepository
}

func NewAssignmentService(
	assignmentRepo *repository.AssignmentRepository,
	certificateRepo *repository.CertificateRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
) *AssignmentService {
	return &AssignmentService{
		assignmentRepo:  assignmentRepo,
		certificateRepo: certificateRepo,
		courseRepo:      courseRepo,
		userRepo:        userRepo,
	}
}

type AssignInput struct {
	UserID   uint       `json:"userId" binding:"required"`
	CourseID string     `json:"courseId" binding:"required"`
	DueDate  *time.Time `json:"dueDate"`
}

// Assign 给员工指派课程，同一课程不重复指派
func (s *AssignmentService) Assign(input AssignInput, assignedBy uint) (*model.Assignment, error) {
	if _, err := s.userRepo.FindByID(input.UserID); err != nil {
		return nil, err
	}
	if _, err := s.courseRepo.FindByID(input.CourseID); err != nil {
		return nil, err
	}

	if existing, err := s.assignmentRepo.FindByUserAndCourse(input.UserID, input.CourseID); err == nil {
		return existing, errors.New("该课程已指派给此员工")
	}

	assignment := &model.Assignment{
		UserID:       input.UserID,
		CourseID:     input.CourseID,
		AssignedBy:   assignedBy,
		AssignedDate: time.Now(),
		DueDate:      input.DueDate,
		Status:       model.AssignmentPending,
	}
	if err := s.assignmentRepo.Create(assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) ListByUser(userID uint) ([]model.Assignment, error) {
	return s.assignmentRepo.ListByUser(userID)
}

func (s *AssignmentService) ListByCourse(courseID string) ([]model.Assignment, error) {
	return s.assignmentRepo.ListByCourse(courseID)
}

type ProgressInput struct {
	Progress int  `json:"progress" binding:"min=0,max=100"`
	Score    *int `json:"score"`
}

// UpdateProgress 更新学习进度。进度到100且测验平均分达到课程及格线时
// 置为完成并签发证书。
func (s *AssignmentService) UpdateProgress(id uint, userID uint, input ProgressInput) (*model.Assignment, error) {
	assignment, err := s.assignmentRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if assignment.UserID != userID {
		return nil, errors.New("无权操作他人的学习记录")
	}

	assignment.Progress = input.Progress
	if input.Score != nil {
		assignment.Score = input.Score
	}

	if assignment.Status == model.AssignmentPending && input.Progress > 0 {
		assignment.Status = model.AssignmentInProgress
	}

	if input.Progress >= 100 && assignment.Status != model.AssignmentCompleted {
		passed, err := s.checkPassed(assignment)
		if err != nil {
			return nil, err
		}
		if passed {
			now := time.Now()
			assignment.Status = model.AssignmentCompleted
			assignment.CompletedDate = &now
			s.issueCertificate(assignment)
		}
	}

	if err := s.assignmentRepo.Update(assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// checkPassed 课程没有测验时只看进度，有测验时要求分数达到及格线
func (s *AssignmentService) checkPassed(assignment *model.Assignment) (bool, error) {
	course, err := s.courseRepo.FindByID(assignment.CourseID)
	if err != nil {
		return false, err
	}

	hasQuiz := false
	for _, m := range course.Modules {
		if m.HasQuiz() {
			hasQuiz = true
			break
		}
	}
	if !hasQuiz {
		return true, nil
	}
	return assignment.Score != nil && *assignment.Score >= course.PassThreshold, nil
}

// issueCertificate 签发结业证书，重复完成不重复签发
func (s *AssignmentService) issueCertificate(assignment *model.Assignment) {
	exists, err := s.certificateRepo.ExistsForAssignment(assignment.UserID, assignment.CourseID)
	if err != nil || exists {
		return
	}

	cert := &model.Certificate{
		UserID:    assignment.UserID,
		CourseID:  assignment.CourseID,
		Code:      model.GenerateUUID(),
		IssueDate: time.Now(),
	}
	if err := s.certificateRepo.Create(cert); err != nil {
		logger.Log.Error("证书签发失败",
			zap.Uint("user_id", assignment.UserID),
			zap.String("course_id", assignment.CourseID),
			zap.Error(err))
	}
}

func (s *AssignmentService) ListCertificates(userID uint) ([]model.Certificate, error) {
	return s.certificateRepo.ListByUser(userID)
}

func (s *AssignmentService) VerifyCertificate(code string) (*model.Certificate, error) {
	return s.certificateRepo.FindByCode(code)
}

// SweepOverdue 把过期未完成的指派批量置为overdue，由后台定时任务调用
func (s *AssignmentService) SweepOverdue() {
	count, err := s.assignmentRepo.MarkOverdue(time.Now())
	if err != nil {
		logger.Log.Error("过期指派清理失败", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Log.Info("过期指派已标记", zap.Int64("count", count))
	}
}

package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	AssignmentService *service.AssignmentService
}

func NewAssignmentController(assignmentService *service.AssignmentService) *AssignmentController {
	return &AssignmentController{AssignmentService: assignmentService}
}

// Assign godoc
// @Summary 指派课程
// @Description 管理员或经理把课程指派给员工
// @Tags 指派
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.AssignInput true "指派信息"
// @Success 201 {object} util.Response{data=model.Assignment}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "课程已指派给此员工"
// @Router /api/assignments [post]
func (c *AssignmentController) Assign(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var input service.AssignInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	assignment, err := c.AssignmentService.Assign(input, claims.UserID)
	if err != nil {
		if assignment != nil {
			util.Error(ctx, 409, err.Error())
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Created(ctx, assignment)
}

// MyAssignments godoc
// @Summary 我的学习任务
// @Tags 指派
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Assignment}
// @Router /api/assignments/my [get]
func (c *AssignmentController) MyAssignments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	assignments, err := c.AssignmentService.ListByUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, assignments)
}

// CourseAssignments godoc
// @Summary 课程的指派记录
// @Tags 指派
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Assignment}
// @Router /api/courses/{id}/assignments [get]
func (c *AssignmentController) CourseAssignments(ctx *gin.Context) {
	assignments, err := c.AssignmentService.ListByCourse(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, assignments)
}

// UpdateProgress godoc
// @Summary 更新学习进度
// @Description 进度达到100且测验达标时自动完成并签发证书
// @Tags 指派
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id   path uint                  true "指派ID"
// @Param   body body service.ProgressInput true "进度与分数"
// @Success 200 {object} util.Response{data=model.Assignment}
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/assignments/{id}/progress [put]
func (c *AssignmentController) UpdateProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var input service.ProgressInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	assignment, err := c.AssignmentService.UpdateProgress(
		util.MustParseUint(ctx.Param("id")), claims.UserID, input)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, assignment)
}

// MyCertificates godoc
// @Summary 我的证书
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates/my [get]
func (c *AssignmentController) MyCertificates(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	certs, err := c.AssignmentService.ListCertificates(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// VerifyCertificate godoc
// @Summary 证书核验
// @Description 凭核验码查询证书真伪，无需登录
// @Tags 证书
// @Produce  json
// @Param   code path string true "证书核验码"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 404 {object} util.Response "证书不存在"
// @Router /api/certificates/verify/{code} [get]
func (c *AssignmentController) VerifyCertificate(ctx *gin.Context) {
	cert, err := c.AssignmentService.VerifyCertificate(ctx.Param("code"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, cert)
}

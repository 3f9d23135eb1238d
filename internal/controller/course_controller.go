package controller

import (
	"errors"
	"io"
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService     *service.CourseService
	ProcessingService *service.ProcessingService
}

func NewCourseController(courseService *service.CourseService, processingService *service.ProcessingService) *CourseController {
	return &CourseController{
		CourseService:     courseService,
		ProcessingService: processingService,
	}
}

// CreateCourseRequest 创建课程请求
// swagger:model CreateCourseRequest
type CreateCourseRequest struct {
	Title         string           `json:"title" binding:"required"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	Thumbnail     string           `json:"thumbnail"`
	PassThreshold int              `json:"passThreshold"`
	Modules       model.ModuleList `json:"modules"`
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CreateCourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req CreateCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course := &model.Course{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Thumbnail:     req.Thumbnail,
		PassThreshold: req.PassThreshold,
		Modules:       req.Modules,
	}
	if err := c.CourseService.CreateCourse(ctx, course); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, course)
}

// GetCourse godoc
// @Summary 课程详情
// @Tags 课程
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	course, err := c.CourseService.GetCourse(ctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, course)
}

// ListCourses godoc
// @Summary 课程列表
// @Tags 课程
// @Produce  json
// @Security BearerAuth
// @Param   page     query int    false "页码" default(1)
// @Param   limit    query int    false "每页数量" default(20)
// @Param   category query string false "按分类筛选"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	courses, total, err := c.CourseService.ListCourses(ctx, page, limit, ctx.Query("category"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  courses,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// UpdateCourseRequest 更新课程元信息请求
// swagger:model UpdateCourseRequest
type UpdateCourseRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Thumbnail     string `json:"thumbnail"`
	PassThreshold int    `json:"passThreshold" binding:"min=0,max=100"`
}

// UpdateCourse godoc
// @Summary 更新课程元信息
// @Description 只更新标题、简介等元信息，模块列表由生成管线维护
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id   path string              true "课程ID"
// @Param   body body UpdateCourseRequest true "课程元信息"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	var req UpdateCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course := &model.Course{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Thumbnail:     req.Thumbnail,
		PassThreshold: req.PassThreshold,
	}
	course.ID = ctx.Param("id")

	if err := c.CourseService.UpdateCourse(ctx, course); err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Description 删除课程及其名下的生成资产
// @Tags 课程
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	if err := c.CourseService.DeleteCourse(ctx, ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ExtractCourseInfo godoc
// @Summary 从上传文件提取课程信息
// @Description 上传PDF、图片或音频，提取教学文本并推断标题、简介和分类
// @Tags 课程
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   file formData file true "课程源文件"
// @Success 200 {object} util.Response{data=model.CourseInfo}
// @Failure 400 {object} util.Response "未配置API Key或文件缺失"
// @Failure 413 {object} util.Response "文件过大"
// @Failure 415 {object} util.Response "不支持的文件类型"
// @Router /api/courses/extract [post]
func (c *CourseController) ExtractCourseInfo(ctx *gin.Context) {
	data, filename, mimeType, ok := c.readUpload(ctx)
	if !ok {
		return
	}

	info, err := c.ProcessingService.ExtractCourseInfo(ctx, filename, data, mimeType)
	if err != nil {
		c.handleAIError(ctx, err)
		return
	}
	util.Success(ctx, info)
}

// TranscribeAudio godoc
// @Summary 音频转写
// @Tags 课程
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   file formData file true "音频文件"
// @Success 200 {object} util.Response{data=object{text=string}}
// @Failure 400 {object} util.Response "未配置API Key或文件缺失"
// @Failure 415 {object} util.Response "不是音频文件"
// @Router /api/courses/transcribe [post]
func (c *CourseController) TranscribeAudio(ctx *gin.Context) {
	data, _, mimeType, ok := c.readUpload(ctx)
	if !ok {
		return
	}
	if !util.IsAudioMimeType(mimeType) {
		util.Error(ctx, 415, util.ErrUnsupportedMedia.Error())
		return
	}

	text, err := c.ProcessingService.TranscribeAudio(ctx, data, mimeType)
	if err != nil {
		c.handleAIError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"text": text})
}

// GenerateRequest 后台生成请求
// swagger:model GenerateRequest
type GenerateRequest struct {
	Content string                  `json:"content" binding:"required"`
	Options model.GenerationOptions `json:"options"`
}

// GenerateCourseContent godoc
// @Summary 启动课程内容后台生成
// @Description 即发即忘接口：立即返回202，生成进度通过状态接口查询
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id   path string          true "课程ID"
// @Param   body body GenerateRequest true "课程内容文本与生成开关"
// @Success 202 {object} util.Response "已受理"
// @Failure 400 {object} util.Response "未配置API Key或参数错误"
// @Failure 402 {object} util.Response "视频生成需要付费套餐"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id}/generate [post]
func (c *CourseController) GenerateCourseContent(ctx *gin.Context) {
	var req GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !req.Options.Any() {
		util.BadRequest(ctx, "至少选择一项生成内容")
		return
	}

	courseID := ctx.Param("id")
	if _, err := c.CourseService.GetCourse(ctx, courseID); err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	c.ProcessingService.ProcessCourseInBackground(courseID, req.Content, req.Options)
	util.Accepted(ctx, gin.H{"courseId": courseID})
}

// GetGenerationStatus godoc
// @Summary 查询后台生成状态
// @Tags 课程
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.GenerationStatus}
// @Failure 404 {object} util.Response "没有该课程的生成记录"
// @Router /api/courses/{id}/generation [get]
func (c *CourseController) GetGenerationStatus(ctx *gin.Context) {
	status, ok := c.ProcessingService.GetGenerationStatus(ctx, ctx.Param("id"))
	if !ok {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, status)
}

// readUpload 读取multipart上传文件并做大小和类型归一化
func (c *CourseController) readUpload(ctx *gin.Context) ([]byte, string, string, bool) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少上传文件")
		return nil, "", "", false
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == util.MimeOctetStream {
		mimeType = util.GuessMimeTypeByExt(fileHeader.Filename)
	}

	limit := int64(util.MaxUploadSize)
	if util.IsAudioMimeType(mimeType) {
		limit = util.MaxAudioUploadSize
	}
	if fileHeader.Size > limit {
		util.Error(ctx, 413, util.ErrFileTooLarge.Error())
		return nil, "", "", false
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return nil, "", "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		util.LogInternalError(ctx, err)
		return nil, "", "", false
	}
	return data, fileHeader.Filename, mimeType, true
}

// handleAIError 把AI服务的哨兵错误映射到HTTP状态码。
// ErrMissingAPIKey 的提示必须原样透传给管理员。
func (c *CourseController) handleAIError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrMissingAPIKey):
		util.BadRequest(ctx, util.ErrMissingAPIKey.Error())
	case errors.Is(err, util.ErrPaidTierRequired):
		util.Error(ctx, 402, util.ErrPaidTierRequired.Error())
	case errors.Is(err, util.ErrUnsupportedMedia):
		util.Error(ctx, 415, util.ErrUnsupportedMedia.Error())
	case errors.Is(err, util.ErrFileTooLarge):
		util.Error(ctx, 413, util.ErrFileTooLarge.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB     *gorm.DB
	Gemini *service.GeminiService
}

func NewHealthController(db *gorm.DB, gemini *service.GeminiService) *HealthController {
	return &HealthController{DB: db, Gemini: gemini}
}

// Health godoc
// @Summary 健康检查
// @Tags 系统
// @Produce  json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) Health(ctx *gin.Context) {
	dbStatus := "up"
	if sqlDB, err := c.DB.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "down"
	}

	aiStatus := "configured"
	if !c.Gemini.Available() {
		aiStatus = "not_configured"
	}

	util.Success(ctx, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"ai":       aiStatus,
	})
}

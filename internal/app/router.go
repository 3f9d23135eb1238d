package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.Health)

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
		public.GET("/certificates/verify/:code", c.assignment.VerifyCertificate)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/auth/me", c.auth.Me)

		// 课程浏览所有角色可用
		authGroup.GET("/courses", c.course.ListCourses)
		authGroup.GET("/courses/:id", c.course.GetCourse)

		// 学习任务与证书
		authGroup.GET("/assignments/my", c.assignment.MyAssignments)
		authGroup.PUT("/assignments/:id/progress", c.assignment.UpdateProgress)
		authGroup.GET("/certificates/my", c.assignment.MyCertificates)

		// 课程管理与内容生成，管理员和经理可用
		managers := authGroup.Group("")
		managers.Use(middleware.RoleMiddleware(model.Manager))
		{
			managers.GET("/users", c.auth.ListUsers)

			managers.POST("/courses", c.course.CreateCourse)
			managers.PUT("/courses/:id", c.course.UpdateCourse)
			managers.DELETE("/courses/:id", c.course.DeleteCourse)

			// 生成类接口每次触发一串模型调用，按用户单独限流
			ai := managers.Group("")
			ai.Use(security.AILimiter(func() (int, time.Duration) {
				perMinute := cfg.RateLimit.AIPerMinute
				if perMinute <= 0 {
					perMinute = 6
				}
				return perMinute, time.Minute
			}))
			{
				ai.POST("/courses/extract", c.course.ExtractCourseInfo)
				ai.POST("/courses/transcribe", c.course.TranscribeAudio)
				ai.POST("/courses/:id/generate", c.course.GenerateCourseContent)
			}
			managers.GET("/courses/:id/generation", c.course.GetGenerationStatus)

			managers.POST("/assignments", c.assignment.Assign)
			managers.GET("/courses/:id/assignments", c.assignment.CourseAssignments)
		}
	}
}

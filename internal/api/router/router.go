package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/api/handler"
	"campusconnect/backend/internal/api/middleware"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/jwt"
	"campusconnect/backend/pkg/redis"
	"campusconnect/backend/pkg/storage"
)

// 认证接口限流：每个 IP 每分钟 20 次
const (
	authRateLimit  = 20
	authRateWindow = time.Minute
)

// Deps 路由依赖
type Deps struct {
	Handler *handler.Handler
	Service *service.Service
	JWT     *jwt.Manager
	Redis   *redis.Client // 为 nil 时限流降级关闭
	Storage storage.Storage
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, deps Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	h := deps.Handler
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	if cfg.Server.MaxBodyBytes > 0 {
		r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	}

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── 本地头像静态托管 ──
	if local, ok := deps.Storage.(*storage.Local); ok {
		r.Static("/uploads", local.Dir())
	}

	auth := middleware.JWTAuth(deps.JWT, deps.Service.Auth, logger)
	optionalAuth := middleware.OptionalAuth(deps.JWT, deps.Service.Auth, logger)
	access := deps.Service.Access
	studentOnly := middleware.RequireRole(access, model.RoleStudent)
	adminOnly := middleware.RequireRole(access, model.RoleAdmin)
	var limiter middleware.RateLimiter
	if deps.Redis != nil {
		limiter = deps.Redis
	}
	rateLimit := middleware.RateLimit(limiter, authRateLimit, authRateWindow)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		v1.GET("/departments", h.Department.ListDepartments)

		// 认证模块（无需认证）
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", rateLimit, h.Auth.Register)
			authGroup.POST("/login", rateLimit, h.Auth.Login)
			authGroup.POST("/google", rateLimit, h.Auth.Google)
			authGroup.POST("/refresh", rateLimit, h.Auth.RefreshToken)
		}

		// 反馈与缺陷（登录可选）
		v1.POST("/feedback", optionalAuth, h.Feedback.SubmitFeedback)
		v1.POST("/bugs", optionalAuth, h.Feedback.SubmitBug)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(auth)
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/profile", h.Auth.UpdateProfile)

			// 好友模块（仅学生）
			friends := authorized.Group("/friends")
			friends.Use(studentOnly)
			{
				friends.POST("/request", h.Friend.SendRequest)
				friends.PUT("/respond", h.Friend.Respond)
				friends.GET("", h.Friend.ListFriends)
				friends.GET("/pending", h.Friend.ListPending)
				friends.GET("/search", h.Friend.Search)
				friends.DELETE("/:id", h.Friend.Remove)
			}

			// 日程模块
			routines := authorized.Group("/routines")
			{
				routines.GET("", h.Routine.ListMine)
				routines.POST("", h.Routine.Create)
				routines.PUT("/:id", h.Routine.Update)
				routines.DELETE("/:id", h.Routine.Delete)
				routines.GET("/user/:id", h.Routine.ListForUser)
				routines.GET("/free-time", h.Routine.FreeTime)
				routines.GET("/free-time/week", h.Routine.FreeTimeWeek)
				routines.POST("/import", h.Routine.ImportICS)
				routines.GET("/export", h.Routine.ExportICS)
			}

			// 学习小组（变更操作仅学生）
			groups := authorized.Group("/study-groups")
			{
				groups.GET("", h.StudyGroup.Search)
				groups.GET("/mine", h.StudyGroup.ListMine)
				groups.GET("/:id", h.StudyGroup.Get)
				groups.GET("/:id/members", h.StudyGroup.ListMembers)
				groups.POST("", studentOnly, h.StudyGroup.Create)
				groups.POST("/:id/join", studentOnly, h.StudyGroup.Join)
				groups.POST("/:id/leave", studentOnly, h.StudyGroup.Leave)
				groups.POST("/:id/transfer", studentOnly, h.StudyGroup.Transfer)
				groups.DELETE("/:id", studentOnly, h.StudyGroup.Delete)
			}

			// 小游戏
			games := authorized.Group("/games")
			{
				games.POST("/rooms", h.Game.CreateRoom)
				games.GET("/rooms", h.Game.ListMine)
				games.GET("/rooms/:code", h.Game.GetRoom)
				games.POST("/rooms/:code/join", h.Game.Join)
				games.POST("/rooms/:code/move", h.Game.Move)
				games.POST("/rooms/:code/reset", h.Game.Reset)
				games.GET("/rooms/:code/events", h.Stream.GameEvents)
				games.GET("/rooms/:code/ws", h.Stream.GameWS)
				games.GET("/stats", h.Game.Stats)
				games.GET("/leaderboard", h.Game.Leaderboard)
			}

			// 聊天
			chat := authorized.Group("/chat")
			{
				chat.GET("/rooms", h.Chat.ListRooms)
				chat.POST("/rooms", h.Chat.CreateGroupRoom)
				chat.POST("/rooms/direct", h.Chat.DirectRoom)
				chat.GET("/rooms/:id/messages", h.Chat.ListMessages)
				chat.POST("/rooms/:id/messages", h.Chat.SendMessage)
				chat.GET("/rooms/:id/events", h.Stream.ChatEvents)
				chat.GET("/rooms/:id/ws", h.Stream.ChatWS)
				chat.DELETE("/messages/:id", h.Chat.DeleteMessage)
			}

			// 通知
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.GET("/unread-count", h.Notification.UnreadCount)
				notifications.GET("/events", h.Stream.NotificationEvents)
				notifications.PATCH("/read-all", h.Notification.MarkAllRead)
				notifications.PATCH("/unread-all", h.Notification.MarkAllUnread)
				notifications.PATCH("/:id/read", h.Notification.MarkRead)
				notifications.PATCH("/:id/unread", h.Notification.MarkUnread)
			}

			// 管理后台（仅管理员，角色实时校验）
			admin := authorized.Group("/admin")
			admin.Use(adminOnly)
			{
				admin.GET("/summary", h.Admin.Summary)

				admin.GET("/feedback", h.Admin.ListFeedback)
				admin.GET("/feedback/export", h.Admin.ExportFeedback)
				admin.PUT("/feedback/:id", h.Admin.UpdateFeedback)

				admin.GET("/bugs", h.Admin.ListBugs)
				admin.GET("/bugs/export", h.Admin.ExportBugs)
				admin.PUT("/bugs/:id", h.Admin.UpdateBug)

				admin.GET("/users", h.Admin.ListUsers)
				admin.PUT("/users/:id/role", h.Admin.AssignRole)

				admin.POST("/departments", h.Department.CreateDepartment)
				admin.PUT("/departments/:id", h.Department.UpdateDepartment)
			}
		}
	}

	return r
}

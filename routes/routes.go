package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sharedish/chat"
	"sharedish/controllers"
	"sharedish/middleware"
	"sharedish/pkg/verify"

	authRoutes "sharedish/routes/auth"
	messageRoutes "sharedish/routes/messages"
	postRoutes "sharedish/routes/posts"
	profileRoutes "sharedish/routes/profile"
	uploadsRoutes "sharedish/routes/uploads"
	websocketRoutes "sharedish/routes/websocket"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, store chat.Store, gw *controllers.Gateway, verifier *verify.Service) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "Share Dish API is running"})
	})

	uploadsRoutes.Register(r)
	websocketRoutes.Register(r, gw)
	authRoutes.RegisterPublic(r, db, verifier)
	postRoutes.RegisterPublic(r, db)

	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	authRoutes.RegisterProtected(protected)
	profileRoutes.Register(protected, db)
	postRoutes.RegisterProtected(protected, db)
	messageRoutes.Register(protected, store)
}

package posts

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sharedish/controllers"
	"sharedish/pkg/services"
)

// RegisterPublic registers read-only listing routes.
func RegisterPublic(r *gin.Engine, db *gorm.DB) {
	r.GET("/api/posts", controllers.ListPosts(db))
	r.GET("/api/posts/:post_id", controllers.GetPost(db))
}

// RegisterProtected registers listing write routes; the group must have
// AuthMiddleware applied.
func RegisterProtected(g *gin.RouterGroup, db *gorm.DB) {
	storage := services.NewObjectStorageService()
	g.POST("/posts", controllers.CreatePost(db))
	g.PUT("/posts/:post_id", controllers.UpdatePost(db))
	g.DELETE("/posts/:post_id", controllers.DeletePost(db))
	g.POST("/posts/:post_id/image", controllers.UploadPostImage(db, storage))
}

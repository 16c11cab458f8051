package messages

import (
	"github.com/gin-gonic/gin"

	"sharedish/chat"
	"sharedish/controllers"
	"sharedish/middleware"
)

// Register registers the synchronous conversation routes (protected).
func Register(g *gin.RouterGroup, store chat.Store) {
	g.POST("/chat", controllers.CreateOrGetChat(store))
	g.GET("/messages/:post_id", controllers.GetChatMessages(store))
	g.POST("/messages", middleware.RateLimit(), controllers.AppendMessage(store))
}

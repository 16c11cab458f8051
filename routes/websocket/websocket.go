package websocket

import (
	"github.com/gin-gonic/gin"

	"sharedish/controllers"
	"sharedish/middleware"
)

func Register(r *gin.Engine, gw *controllers.Gateway) {
	r.GET("/ws/chat", middleware.RateLimit(), gw.ChatWS())
}

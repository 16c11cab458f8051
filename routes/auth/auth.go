package auth

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sharedish/controllers"
	"sharedish/middleware"
	"sharedish/pkg/verify"
)

// RegisterPublic registers public auth routes: register, login and the
// WhatsApp verification code flow.
func RegisterPublic(r *gin.Engine, db *gorm.DB, verifier *verify.Service) {
	r.POST("/api/auth/register", controllers.Register(db))
	r.POST("/api/auth/login", controllers.Login(db))
	r.POST("/api/auth/send-whatsapp-code", middleware.RateLimit(), controllers.SendWhatsAppCode(verifier))
	r.POST("/api/auth/verify-whatsapp-code", middleware.RateLimit(), controllers.VerifyWhatsAppCode(db, verifier))
}

// RegisterProtected registers protected auth routes (e.g. logout)
func RegisterProtected(g *gin.RouterGroup) {
	g.POST("/auth/logout", controllers.Logout())
}

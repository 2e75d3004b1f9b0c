package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/models"
)

const faultMessage = "page could not be rendered"

// Recovery turns a panic in a page handler into a recorded fault for the visitor's session.
// The fault page stays until the visitor resets it; the rest of the session is kept.
func (pc *PageController) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().Str("panic", fmt.Sprint(recovered)).Str("path", c.Request.URL.Path).Msg("💥 Handler panicked")
		if _, err := c.Cookie(pc.opts.CookieName); err != nil {
			// no session to attach the fault to
			pc.renderFault(c, http.StatusInternalServerError)
			return
		}
		pc.recordFault(c, "", fmt.Errorf("panic: %v", recovered))
		pc.renderFault(c, http.StatusInternalServerError)
	})
}

// recordFault stores the fault on the session. An empty view means the session's current one.
func (pc *PageController) recordFault(c *gin.Context, view models.ViewState, cause error) {
	_, err := pc.withSession(c, func(s *models.Session) error {
		if view == "" {
			view = s.View
		}
		s.Fault = &models.Fault{View: view, Message: faultMessage, At: time.Now()}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to record fault")
	}
	log.Warn().Err(cause).Str("view", string(view)).Msg("⚠️ View fault recorded")
}

func (pc *PageController) renderFault(c *gin.Context, status int) {
	body, err := pc.views.Render("fault", faultData{
		BackgroundImageURL: pc.opts.BackgroundImageURL,
		LogoURL:            pc.opts.LogoURL,
	})
	if err != nil {
		log.Error().Err(err).Msg("❌ Fault page failed to render")
		c.String(http.StatusInternalServerError, "Something went wrong")
		c.Abort()
		return
	}
	c.Data(status, "text/html; charset=utf-8", body)
	c.Abort()
}

package api

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/models"
	"nidar/preorder/internal/services"
)

// PageOptions are the presentation settings of the server-rendered pages.
type PageOptions struct {
	CookieName         string
	CookieTTL          time.Duration
	SecureCookie       bool
	BackgroundImageURL string
	LogoURL            string
}

// PageController serves the three views and the form actions behind them.
// Every action follows post/redirect/get.
type PageController struct {
	flow     *services.OrderFlow
	sessions *services.SessionManager
	hub      *ArrivalHub
	views    *Views
	opts     PageOptions
}

func NewPageController(flow *services.OrderFlow, sessions *services.SessionManager, hub *ArrivalHub, views *Views, opts PageOptions) *PageController {
	if opts.CookieName == "" {
		opts.CookieName = "nidar_session"
	}
	return &PageController{
		flow:     flow,
		sessions: sessions,
		hub:      hub,
		views:    views,
		opts:     opts,
	}
}

func (pc *PageController) sessionID(c *gin.Context) string {
	id, err := c.Cookie(pc.opts.CookieName)
	if err != nil {
		return ""
	}
	return id
}

func (pc *PageController) setSessionCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(pc.opts.CookieName, id, int(pc.opts.CookieTTL.Seconds()), "/", "", pc.opts.SecureCookie, true)
}

// withSession runs fn on the visitor's session and keeps the cookie in step with it.
func (pc *PageController) withSession(c *gin.Context, fn func(*models.Session) error) (*models.Session, error) {
	s, err := pc.sessions.WithSession(c.Request.Context(), pc.sessionID(c), fn)
	if s != nil {
		pc.setSessionCookie(c, s.ID)
	}
	return s, err
}

// Show renders the session's current view, or the fault page while a fault is recorded.
func (pc *PageController) Show(c *gin.Context) {
	var snap services.SessionSnapshot
	s, err := pc.withSession(c, func(s *models.Session) error {
		if s.View == models.ViewOrder && !s.Submitting {
			pc.flow.RefreshMinArrival(s)
		}
		snap = pc.flow.Snapshot(s)
		return nil
	})
	if err != nil {
		pc.internalError(c, err)
		return
	}
	if s.Fault != nil {
		pc.renderFault(c, http.StatusOK)
		return
	}

	data := pageData{
		SessionSnapshot:    snap,
		Tab:                parseTab(c.Query("tab")),
		MinLeadMinutes:     int(pc.flow.MinLead().Minutes()),
		BackgroundImageURL: pc.opts.BackgroundImageURL,
		LogoURL:            pc.opts.LogoURL,
		ShareHref:          template.URL(snap.ShareLink),
	}
	data.Tabs = buildTabs(snap.Form.Items, data.Tab)

	body, err := pc.views.Render(string(snap.View), data)
	if err != nil {
		pc.recordFault(c, snap.View, err)
		pc.renderFault(c, http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

func (pc *PageController) SetSampleMode(c *gin.Context) {
	on := c.PostForm("enabled") == "true"
	pc.act(c, func(s *models.Session) error {
		return pc.flow.SetSampleMode(s, on)
	})
}

func (pc *PageController) OrderNow(c *gin.Context) {
	pc.act(c, pc.flow.OrderNow)
}

func (pc *PageController) Back(c *gin.Context) {
	pc.act(c, func(s *models.Session) error {
		if err := pc.applyDetails(c, s); err != nil {
			return err
		}
		return pc.flow.Back(s)
	})
}

func (pc *PageController) AddItem(c *gin.Context) {
	id := c.Param("id")
	pc.act(c, func(s *models.Session) error {
		if err := pc.applyDetails(c, s); err != nil {
			return err
		}
		return pc.flow.AddItem(s, id)
	})
}

func (pc *PageController) RemoveItem(c *gin.Context) {
	id := c.Param("id")
	pc.act(c, func(s *models.Session) error {
		if err := pc.applyDetails(c, s); err != nil {
			return err
		}
		return pc.flow.RemoveItem(s, id)
	})
}

func (pc *PageController) UpdateDetails(c *gin.Context) {
	pc.act(c, func(s *models.Session) error {
		return pc.applyDetails(c, s)
	})
}

// Submit saves the posted details, then places the order. The request waits for the agent.
func (pc *PageController) Submit(c *gin.Context) {
	s, err := pc.withSession(c, func(s *models.Session) error {
		return pc.applyDetails(c, s)
	})
	if err == nil {
		s, err = pc.flow.Submit(c.Request.Context(), pc.sessions, s.ID)
	}
	pc.finish(c, s, err)
}

func (pc *PageController) NewOrder(c *gin.Context) {
	pc.act(c, pc.flow.NewOrder)
}

func (pc *PageController) ResetFault(c *gin.Context) {
	pc.act(c, func(s *models.Session) error {
		pc.flow.ResetFault(s)
		return nil
	})
}

// applyDetails copies the posted detail fields onto the form. Fields absent from the post stay untouched.
func (pc *PageController) applyDetails(c *gin.Context, s *models.Session) error {
	var upd services.DetailsUpdate
	found := false
	if v, ok := c.GetPostForm("customer_name"); ok {
		upd.CustomerName, found = &v, true
	}
	if v, ok := c.GetPostForm("phone"); ok {
		upd.Phone, found = &v, true
	}
	if v, ok := c.GetPostForm("arrival_time"); ok {
		upd.ArrivalTime, found = &v, true
	}
	if v, ok := c.GetPostForm("special_instructions"); ok {
		upd.SpecialInstructions, found = &v, true
	}
	if !found {
		return nil
	}
	return pc.flow.UpdateDetails(s, upd)
}

func (pc *PageController) act(c *gin.Context, fn func(*models.Session) error) {
	s, err := pc.withSession(c, fn)
	pc.finish(c, s, err)
}

// finish redirects back to the page; flow errors are already reflected in the session.
func (pc *PageController) finish(c *gin.Context, s *models.Session, err error) {
	switch {
	case err == nil:
	case errors.Is(err, services.ErrValidationFailed):
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrSubmissionInProgress):
		log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("ℹ️ Action ignored")
	case errors.Is(err, models.ErrUnknownMenuItem):
		c.String(http.StatusNotFound, "Unknown menu item")
		return
	default:
		pc.internalError(c, err)
		return
	}

	if s != nil && s.View != models.ViewOrder {
		pc.hub.DropSession(s.ID)
	}

	target := "/"
	if tab := c.PostForm("tab"); tab != "" {
		target = "/?tab=" + string(parseTab(tab))
	}
	c.Redirect(http.StatusSeeOther, target)
}

func (pc *PageController) internalError(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("❌ Request failed")
	c.String(http.StatusInternalServerError, "Something went wrong. Please try again.")
}

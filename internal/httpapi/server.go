// Package httpapi is the HTTP and websocket surface: account and roster
// CRUD over echo, plus the live display and monitor streams.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"rollcall/internal/account"
	"rollcall/internal/broadcast"
	"rollcall/internal/classroom"
	"rollcall/internal/session"
)

// Options wires the server's collaborators.
type Options struct {
	Addr string
	// ReadTimeout bounds how long a request may take to arrive. No write
	// timeout exists: it would sever the long-lived websocket streams.
	ReadTimeout    time.Duration
	Accounts       *account.Service
	Classrooms     *classroom.Service
	Controller     *session.Controller
	Broadcaster    *broadcast.Broadcaster
	DisableReqLogs bool
}

// Credential endpoints share one per-IP budget so password guessing and
// signup floods get cut off before the account service sees them.
const credentialAttemptsPerMinute = 30

type Server struct {
	opts  *Options
	app   *echo.Echo
	creds echo.MiddlewareFunc
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(opts *Options) *Server {
	s := &Server{opts: opts, app: echo.New()}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.opts.ReadTimeout
	s.app.Validator = &requestValidator{validate: validator.New()}
	s.app.HTTPErrorHandler = httpErrorHandler

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(middleware.Recover())

	s.app.GET("/health", s.health)

	s.creds = newThrottle(credentialAttemptsPerMinute).middleware

	v1 := s.app.Group("/v1")
	auth := authRequired(s.opts.Accounts)

	s.registerAdminRoutes(v1, auth)
	s.registerTeacherRoutes(v1, auth)
	s.registerStudentRoutes(v1, auth)
	s.registerLiveRoutes(v1, auth)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":      "ok",
		"subscribers": s.opts.Broadcaster.Stats(),
	})
}

func (s *Server) Start() error {
	return s.app.Start(s.opts.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// ServeHTTP lets tests drive the server without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

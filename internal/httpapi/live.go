package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"rollcall/internal/account"
	ws "rollcall/internal/websocket"
	"rollcall/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The platform serves first-party frontends; origin policy is enforced
	// at the edge.
	CheckOrigin: func(*http.Request) bool { return true },
}

// tokenFrame is one display push.
type tokenFrame struct {
	Type  string            `json:"type"`
	Token types.ActiveToken `json:"token"`
}

// sessionFrame announces the opened session to the display.
type sessionFrame struct {
	Type    string              `json:"type"`
	Session *types.ClassSession `json:"session"`
}

// presenceFrame is one monitor push.
type presenceFrame struct {
	Type     string               `json:"type"`
	Presence types.PresenceUpdate `json:"presence"`
}

func (s *Server) registerLiveRoutes(g *echo.Group, _ echo.MiddlewareFunc) {
	live := g.Group("/live")
	live.GET("/display", s.liveDisplay)
	live.GET("/monitor", s.liveMonitor)
}

// liveClaims authenticates a websocket request. Browsers cannot set headers
// on upgrade requests, so a token query parameter is accepted too.
func (s *Server) liveClaims(c echo.Context) (*account.Claims, error) {
	token := c.QueryParam("token")
	if token == "" {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, _ = strings.CutPrefix(header, "Bearer ")
	}
	if token == "" {
		return nil, errMissingToken
	}
	return s.opts.Accounts.VerifyAuthToken(token)
}

// liveDisplay opens the class session and streams minted tokens until the
// display disconnects, which closes the session.
func (s *Server) liveDisplay(c echo.Context) error {
	claims, err := s.liveClaims(c)
	if err != nil {
		return err
	}
	if claims.Role != types.RoleTeacher {
		return errForbidden
	}
	classID := c.QueryParam("class_id")
	if classID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "class_id is required")
	}
	ctx := c.Request().Context()
	if err := s.opts.Classrooms.VerifyOwner(ctx, claims.Subject, classID); err != nil {
		return err
	}

	sess, sub, err := s.opts.Controller.OpenDisplay(ctx, classID)
	if err != nil {
		return err
	}

	raw, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.opts.Controller.CloseDisplay(ctx, sess.ID, sub)
		return err
	}
	conn := ws.NewConn(raw)
	defer func() {
		conn.Close()
		s.opts.Controller.CloseDisplay(c.Request().Context(), sess.ID, sub)
	}()

	go conn.ReadLoop()

	if err := conn.WriteJSON(sessionFrame{Type: "session", Session: sess}); err != nil {
		return nil
	}
	for {
		select {
		case token, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(tokenFrame{Type: "token", Token: token}); err != nil {
				return nil
			}
		case <-conn.Done():
			return nil
		}
	}
}

// liveMonitor streams the checked-in roster of the class's open session.
func (s *Server) liveMonitor(c echo.Context) error {
	claims, err := s.liveClaims(c)
	if err != nil {
		return err
	}
	if claims.Role != types.RoleTeacher {
		return errForbidden
	}
	classID := c.QueryParam("class_id")
	if classID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "class_id is required")
	}
	if err := s.opts.Classrooms.VerifyOwner(c.Request().Context(), claims.Subject, classID); err != nil {
		return err
	}

	sub, snapshot := s.opts.Controller.OpenMonitor(classID)

	raw, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.opts.Controller.CloseMonitor(sub)
		return err
	}
	conn := ws.NewConn(raw)
	defer func() {
		conn.Close()
		s.opts.Controller.CloseMonitor(sub)
	}()

	go conn.ReadLoop()

	if snapshot != nil {
		if err := conn.WriteJSON(presenceFrame{Type: "presence", Presence: *snapshot}); err != nil {
			return nil
		}
	}
	for {
		select {
		case update, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(presenceFrame{Type: "presence", Presence: update}); err != nil {
				return nil
			}
		case <-conn.Done():
			return nil
		}
	}
}

package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"rollcall/pkg/types"
)

func (s *Server) registerTeacherRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	teachers := g.Group("/teachers")

	teachers.POST("/login", s.teacherLogin, s.creds)
	teachers.GET("/verify-email", s.teacherVerifyEmail)
	teachers.POST("/forgot-password", s.teacherForgotPassword, s.creds)
	teachers.POST("/reset-password", s.teacherResetPassword, s.creds)

	owner := teachers.Group("/:id", auth, roleRequired(types.RoleTeacher), selfOnly)
	owner.GET("", s.teacherProfile)
	owner.POST("/classes", s.teacherCreateClass)
	owner.PUT("/classes/:cid", s.teacherRenameClass)
	owner.PUT("/classes/:cid/students", s.teacherAddStudent)
	owner.DELETE("/classes/:cid/students/:srn", s.teacherRemoveStudent)
	owner.GET("/classes/:cid/sessions", s.teacherClassSessions)
	owner.GET("/classes/:cid/sessions/:sid", s.teacherSessionRoster)
	owner.DELETE("/classes/:cid/sessions/:sid/students/:studentID", s.teacherDeleteCheckIn)
}

func (s *Server) teacherLogin(c echo.Context) error {
	var in loginRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	teacher, token, err := s.opts.Accounts.LoginTeacher(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "account": teacher})
}

func (s *Server) teacherVerifyEmail(c echo.Context) error {
	if err := s.opts.Accounts.VerifyTeacherEmail(c.Request().Context(), c.QueryParam("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

func (s *Server) teacherForgotPassword(c echo.Context) error {
	var in forgotPasswordRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	if err := s.opts.Accounts.ForgotTeacherPassword(c.Request().Context(), in.Email); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) teacherResetPassword(c echo.Context) error {
	var in resetPasswordRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	if err := s.opts.Accounts.ResetTeacherPassword(c.Request().Context(), c.QueryParam("token"), in.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"reset": true})
}

func (s *Server) teacherProfile(c echo.Context) error {
	teacher, err := s.opts.Accounts.GetTeacher(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, teacher)
}

type classRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) teacherCreateClass(c echo.Context) error {
	var in classRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	class, err := s.opts.Classrooms.CreateClass(c.Request().Context(), c.Param("id"), in.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, class)
}

func (s *Server) teacherRenameClass(c echo.Context) error {
	var in classRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	class, err := s.opts.Classrooms.RenameClass(c.Request().Context(), c.Param("id"), c.Param("cid"), in.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, class)
}

type rosterRequest struct {
	SRN string `json:"srn" validate:"required"`
}

func (s *Server) teacherAddStudent(c echo.Context) error {
	var in rosterRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	class, err := s.opts.Classrooms.AddStudent(c.Request().Context(), c.Param("id"), c.Param("cid"), in.SRN)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, class)
}

func (s *Server) teacherRemoveStudent(c echo.Context) error {
	if err := s.opts.Classrooms.RemoveStudent(c.Request().Context(), c.Param("id"), c.Param("cid"), c.Param("srn")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) teacherClassSessions(c echo.Context) error {
	sessions, err := s.opts.Classrooms.ClassSessions(c.Request().Context(), c.Param("id"), c.Param("cid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) teacherSessionRoster(c echo.Context) error {
	roster, err := s.opts.Classrooms.Roster(c.Request().Context(), c.Param("id"), c.Param("cid"), c.Param("sid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roster)
}

// teacherDeleteCheckIn is the correction path: the check-in disappears from
// the session and from the student's history.
func (s *Server) teacherDeleteCheckIn(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.opts.Classrooms.VerifyOwner(ctx, c.Param("id"), c.Param("cid")); err != nil {
		return err
	}
	if err := s.opts.Controller.DeleteCheckIn(ctx, c.Param("sid"), c.Param("studentID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

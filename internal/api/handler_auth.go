package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-bus-backend/internal/account"
	"campus-bus-backend/internal/model"
)

type registerRequest struct {
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirmPassword"`
	Role            model.Role `json:"role"`
	Passcode        string     `json:"conductorPasscode"`
}

type loginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

type authResponse struct {
	ID    string     `json:"_id"`
	Name  string     `json:"name"`
	Email string     `json:"email,omitempty"`
	Phone string     `json:"phone,omitempty"`
	Role  model.Role `json:"role"`
	Token string     `json:"token"`
}

func newAuthResponse(s *account.Session) authResponse {
	return authResponse{
		ID:    s.User.ID,
		Name:  s.User.Name,
		Email: s.User.ContactEmail(),
		Phone: s.User.ContactPhone(),
		Role:  s.User.Role,
		Token: s.Token,
	}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}

	session, err := h.accounts.Register(c.Request.Context(), account.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
		Passcode:        req.Passcode,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAuthResponse(session))
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.LoginID, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuthResponse(session))
}

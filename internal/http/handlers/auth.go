package handlers

import (
	"database/sql"
	"net/http"
	"time"

	intconfig "busline/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler issues and verifies account credentials. Accounts are optional;
// bookings also work for session-bound and guest callers.
type AuthHandler struct {
	Secret []byte
	DB     *sql.DB
}

func (h AuthHandler) db() *sql.DB {
	if h.DB != nil {
		return h.DB
	}
	return intconfig.DB
}

// AuthUser is the user payload of auth responses.
type AuthUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (h AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", false)
		return
	}

	var (
		user         AuthUser
		passwordHash string
	)
	err := h.db().QueryRow(`
        SELECT id, name, username, email, phone, password_hash, role, status
        FROM users
        WHERE email = ? OR username = ?
    `, req.Email, req.Email).Scan(
		&user.ID, &user.Name, &user.Username, &user.Email,
		&user.Phone, &passwordHash, &user.Role, &user.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(c, http.StatusUnauthorized, "unauthorized", "wrong email/username or password", false)
		} else {
			RespondDomainError(c, err)
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized", "wrong email/username or password", false)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	tokenString, err := token.SignedString(h.Secret)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
		"user":  user,
	})
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=8"`
}

// POST /api/auth/register
func (h AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", false)
		return
	}

	var exists int
	if err := h.db().QueryRow(`
        SELECT COUNT(*) FROM users WHERE email = ? OR username = ?
    `, req.Email, req.Username).Scan(&exists); err != nil {
		RespondDomainError(c, err)
		return
	}
	if exists > 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "email or username already registered", false)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	res, err := h.db().Exec(`
        INSERT INTO users (name, username, email, phone, password_hash, role, status)
        VALUES (?, ?, ?, ?, ?, 'user', 'active')
    `, req.Name, req.Username, req.Email, req.Phone, string(hash))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	id, _ := res.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{
		"message": "registration successful",
		"user": AuthUser{
			ID:       id,
			Name:     req.Name,
			Username: req.Username,
			Email:    req.Email,
			Phone:    req.Phone,
			Role:     "user",
			Status:   "active",
		},
	})
}

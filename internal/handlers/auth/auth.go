package handlers_auth

import (
	"net/http"
	"qrcommerce/internal/models/clcaptchas"
	"qrcommerce/internal/models/clconfig"

	"github.com/andskur/argon2-hashing"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type LoginRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	CaptchaID     string `json:"captcha_id"`
	CaptchaAnswer string `json:"captcha_answer"`
}

type AuthHandler struct {
	user    clconfig.UserConfig
	captcha *clcaptchas.Captchas
}

func NewAuthHandler(user clconfig.UserConfig, captcha *clcaptchas.Captchas) *AuthHandler {
	return &AuthHandler{
		user:    user,
		captcha: captcha,
	}
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	if err := ah.captcha.VerifyCaptcha(req.CaptchaID, req.CaptchaAnswer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Vérification login / pass
	err := argon2.CompareHashAndPassword([]byte(ah.user.Hash), []byte(req.Password))
	if err != nil || req.Username != ah.user.Login {
		log.Warn().Str("user", req.Username).Str("ip", c.ClientIP()).Msg("Tentative de connexion échouée")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants incorrects"})
		return
	}
	log.Info().Str("user", req.Username).Str("ip", c.ClientIP()).Msg("Connexion réussie")

	// Créer la session
	session := sessions.Default(c)
	session.Set("user_id", "admin")
	session.Set("username", req.Username)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Connexion réussie",
		"redirect": "/admin/api/dashboard",
	})
}

func (ah *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "Déconnexion réussie"})
}

package handlers_settings

import (
	"net/http"
	"qrcommerce/internal/models/clsettings"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	service *clsettings.Service
}

func NewSettingsHandler(service *clsettings.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (sh *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, sh.service.Get())
}

// Update remplace les réglages, les valeurs hors bornes sont corrigées
func (sh *SettingsHandler) Update(c *gin.Context) {
	current := sh.service.Get()
	if err := c.ShouldBindJSON(&current); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	saved, err := sh.service.Update(current)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Settings saved successfully",
		"settings": saved,
	})
}

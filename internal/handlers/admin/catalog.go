package handlers_admin

import (
	"net/http"
	"qrcommerce/internal/models/clcatalog"
	"qrcommerce/internal/models/clorders"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (ah *AdminHandler) ListProducts(c *gin.Context) {
	categoryID, _ := strconv.ParseUint(c.Query("category"), 10, 64)
	products, err := ah.app.Catalog.ListProducts(c.Query("status"), uint(categoryID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (ah *AdminHandler) CreateProduct(c *gin.Context) {
	var p clcatalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	p.ID = 0
	if err := ah.app.Catalog.CreateProduct(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (ah *AdminHandler) UpdateProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	p, err := ah.app.Catalog.GetProduct(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if err := c.ShouldBindJSON(p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	p.ID = id
	if err := ah.app.Catalog.UpdateProduct(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (ah *AdminHandler) DeleteProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := ah.app.Catalog.DeleteProduct(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Produit supprimé"})
}

func (ah *AdminHandler) ListCategories(c *gin.Context) {
	categories, err := ah.app.Catalog.ListCategories()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (ah *AdminHandler) CreateCategory(c *gin.Context) {
	var cat clcatalog.Category
	if err := c.ShouldBindJSON(&cat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	cat.ID = 0
	if err := ah.app.Catalog.CreateCategory(&cat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (ah *AdminHandler) DeleteCategory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := ah.app.Catalog.DeleteCategory(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Catégorie supprimée"})
}

// Orders dernières commandes avec leur attribution éventuelle
func (ah *AdminHandler) Orders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	var (
		orders []clorders.Order
		err    error
	)
	if c.Query("tracked") == "1" {
		orders, err = ah.app.Orders.QRTrackedOrders(limit)
	} else {
		orders, err = ah.app.Orders.RecentOrders(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

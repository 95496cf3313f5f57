// Package api exposes the HTTP surface: the websocket endpoint for the
// live order feed, the initial-state fetch, and the collaborator CRUD
// the role views use (catalog, users, cafe info, uploads).
package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cafe-system/internal/cafeinfo"
	"cafe-system/internal/catalog"
	"cafe-system/internal/directory"
	"cafe-system/internal/domain"
	"cafe-system/internal/gateway"
	"cafe-system/internal/lifecycle"
)

type API struct {
	core       *lifecycle.Service
	gw         *gateway.Gateway
	catalog    *catalog.Catalog
	users      *directory.Directory
	info       *cafeinfo.Store
	uploadsDir string
	log        *zap.Logger
}

func New(core *lifecycle.Service, gw *gateway.Gateway, cat *catalog.Catalog, users *directory.Directory, info *cafeinfo.Store, uploadsDir string, log *zap.Logger) *API {
	return &API{
		core:       core,
		gw:         gw,
		catalog:    cat,
		users:      users,
		info:       info,
		uploadsDir: uploadsDir,
		log:        log,
	}
}

func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(a.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", gin.WrapH(a.gw))
	r.Static("/uploads", a.uploadsDir)

	api := r.Group("/api")
	{
		api.POST("/login", a.login)
		api.GET("/orders", a.listOrders)

		api.GET("/products", a.listProducts)
		api.POST("/products", a.addProduct)
		api.PUT("/products/:id", a.updateProduct)
		api.DELETE("/products/:id", a.deleteProduct)

		api.GET("/categories", a.listCategories)
		api.POST("/categories", a.addCategory)
		api.PUT("/categories/:id", a.updateCategory)
		api.DELETE("/categories/:id", a.deleteCategory)

		api.GET("/users", a.listUsers)
		api.POST("/users", a.addUser)
		api.PUT("/users/:username", a.updateUser)
		api.DELETE("/users/:username", a.deleteUser)

		api.GET("/cafe-info", a.getCafeInfo)
		api.PUT("/cafe-info", a.putCafeInfo)

		api.POST("/upload", a.upload)
	}
	return r
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// fail maps the error taxonomy onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, directory.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

// listOrders is the initial-state fetch a view performs before it
// starts consuming live events over /ws.
func (a *API) listOrders(c *gin.Context) {
	c.JSON(http.StatusOK, a.core.Orders())
}

func (a *API) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	user, token, err := a.users.Login(req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user, "token": token})
}

func (a *API) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, a.catalog.Products())
}

func (a *API) addProduct(c *gin.Context) {
	var p catalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	p, err := a.catalog.AddProduct(p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}

func (a *API) updateProduct(c *gin.Context) {
	var p catalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	p, oldImage, err := a.catalog.UpdateProduct(c.Param("id"), p)
	if err != nil {
		fail(c, err)
		return
	}
	if oldImage != "" && oldImage != p.Image {
		a.removeUpload(oldImage)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": p})
}

func (a *API) deleteProduct(c *gin.Context) {
	removed, err := a.catalog.DeleteProduct(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if removed.Image != "" {
		a.removeUpload(removed.Image)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "product deleted"})
}

func (a *API) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, a.catalog.Categories())
}

func (a *API) addCategory(c *gin.Context) {
	var cat catalog.Category
	if err := c.ShouldBindJSON(&cat); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	cat, err := a.catalog.AddCategory(cat)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "category": cat})
}

func (a *API) updateCategory(c *gin.Context) {
	var cat catalog.Category
	if err := c.ShouldBindJSON(&cat); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	cat, err := a.catalog.UpdateCategory(c.Param("id"), cat)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "category": cat})
}

func (a *API) deleteCategory(c *gin.Context) {
	if err := a.catalog.DeleteCategory(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "category deleted"})
}

func (a *API) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, a.users.Users())
}

func (a *API) addUser(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"required"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	u, err := a.users.Add(req.Username, req.Password, req.Role, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (a *API) updateUser(c *gin.Context) {
	var req struct {
		Password *string `json:"password"`
		Role     *string `json:"role"`
		Name     *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	u, err := a.users.Update(c.Param("username"), req.Password, req.Role, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (a *API) deleteUser(c *gin.Context) {
	if err := a.users.Delete(c.Param("username")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "user deleted"})
}

func (a *API) getCafeInfo(c *gin.Context) {
	c.JSON(http.StatusOK, a.info.Get())
}

func (a *API) putCafeInfo(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, errors.Join(domain.ErrValidation, err))
		return
	}
	info, err := a.info.Merge(patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cafeInfo": info})
}

func (a *API) upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, errors.Join(domain.ErrValidation, errors.New("no file uploaded")))
		return
	}
	name := uuid.NewString() + filepath.Ext(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(a.uploadsDir, name)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imagePath": "/uploads/" + name})
}

// removeUpload deletes a previously uploaded image referenced as
// "/uploads/<name>". Best-effort; a stale file is not worth an error.
func (a *API) removeUpload(imagePath string) {
	name := filepath.Base(imagePath)
	if name == "." || name == "/" {
		return
	}
	if err := os.Remove(filepath.Join(a.uploadsDir, name)); err != nil && !os.IsNotExist(err) {
		a.log.Warn("remove upload failed", zap.String("image", name), zap.Error(err))
	}
}

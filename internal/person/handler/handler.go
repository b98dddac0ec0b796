package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/export"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/repository"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/service"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/logger"
)

// Exporter writes snapshots of all people somewhere durable and reads them back.
type Exporter interface {
	Export(ctx context.Context) (*export.Result, error)
	Open(ctx context.Context, key string) (*export.Snapshot, error)
}

// RegisterPersonRoutes mounts the people API. guard (usually the auth
// middleware) wraps only the mutating routes.
func RegisterPersonRoutes(r *gin.Engine, svc service.Service, guard ...gin.HandlerFunc) {
	api := r.Group("/api")
	write := api.Group("")
	write.Use(guard...)

	api.GET("/people", func(c *gin.Context) {
		var (
			list []*person.Person
			err  error
		)
		if name, ok := c.GetQuery("name"); ok {
			list, err = svc.FindByName(c.Request.Context(), name)
		} else {
			list, err = svc.List(c.Request.Context())
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(list))
	})

	api.GET("/people/:id", func(c *gin.Context) {
		p, err := svc.FindByID(c.Request.Context(), c.Param("id"))
		writePerson(c, http.StatusOK, p, err)
	})

	api.GET("/foods/:food/person", func(c *gin.Context) {
		p, err := svc.FindOneByFood(c.Request.Context(), c.Param("food"))
		writePerson(c, http.StatusOK, p, err)
	})

	api.GET("/foods/:food/people", func(c *gin.Context) {
		list, err := svc.QueryByFoodSortedLimited(c.Request.Context(), c.Param("food"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(list))
	})

	write.POST("/people", func(c *gin.Context) {
		var in person.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := svc.Create(c.Request.Context(), in)
		writePerson(c, http.StatusCreated, p, err)
	})

	write.POST("/batch/people", func(c *gin.Context) {
		var in []person.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.CreateMany(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, nonNil(out))
	})

	write.POST("/people/:id/foods", func(c *gin.Context) {
		var req struct {
			Food string `json:"food" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := svc.AddFavoriteFoodAndSave(c.Request.Context(), c.Param("id"), req.Food)
		writePerson(c, http.StatusOK, p, err)
	})

	write.PATCH("/people", func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
			return
		}
		var req struct {
			Age *int `json:"age" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := svc.SetAgeByName(c.Request.Context(), name, *req.Age)
		writePerson(c, http.StatusOK, p, err)
	})

	write.DELETE("/people/:id", func(c *gin.Context) {
		p, err := svc.DeleteByID(c.Request.Context(), c.Param("id"))
		writePerson(c, http.StatusOK, p, err)
	})

	write.DELETE("/people", func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
			return
		}
		res, err := svc.DeleteManyByName(c.Request.Context(), name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}

// RegisterExportRoutes mounts the snapshot endpoints. A nil exporter answers 503.
func RegisterExportRoutes(r *gin.Engine, exp Exporter, guard ...gin.HandlerFunc) {
	g := r.Group("/api/exports")
	g.Use(guard...)
	g.Use(func(c *gin.Context) {
		if exp == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "export storage not configured"})
			return
		}
		c.Next()
	})

	g.POST("", func(c *gin.Context) {
		res, err := exp.Export(c.Request.Context())
		if err != nil {
			logger.Errorf("export failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	g.GET("/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		snap, err := exp.Open(c.Request.Context(), key)
		switch {
		case errors.Is(err, export.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, export.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case err != nil:
			logger.Errorf("export open %s: %v", key, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		default:
			c.JSON(http.StatusOK, snap)
		}
	})
}

func writePerson(c *gin.Context, status int, p *person.Person, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(status, p)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, person.ErrNameRequired), errors.Is(err, repository.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func nonNil(list []*person.Person) []*person.Person {
	if list == nil {
		return []*person.Person{}
	}
	return list
}

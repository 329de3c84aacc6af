package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smarthub/internal/engine"
	"smarthub/internal/models"
	"smarthub/internal/rules"
	"smarthub/internal/web/middleware"
	webModels "smarthub/internal/web/models"
)

// RuleEngine is what the rule routes need from the engine
type RuleEngine interface {
	NewRule(desc models.RuleDescription) (*rules.Rule, error)
	GetRules(ctx context.Context) ([]*rules.Rule, error)
	GetRule(ctx context.Context, id int64) (*rules.Rule, error)
	AddRule(ctx context.Context, rule *rules.Rule) (int64, error)
	UpdateRule(ctx context.Context, id int64, rule *rules.Rule) error
	DeleteRule(ctx context.Context, id int64) error
}

func RegisterRuleRoutes(r gin.IRouter, middleware *middleware.MiddlewareManager, eng RuleEngine, logger *zap.Logger) {
	routes := r.Group("/rules")
	routes.Use(middleware.RequireAuth())
	{
		routes.GET("", func(c *gin.Context) {
			list, err := eng.GetRules(c.Request.Context())
			if err != nil {
				fail(c, logger, err)
				return
			}
			descs := make([]models.RuleDescription, len(list))
			for i, rule := range list {
				descs[i] = rule.Description()
			}
			c.JSON(200, descs)
		})

		routes.GET("/:id", func(c *gin.Context) {
			id, ok := ruleID(c)
			if !ok {
				return
			}
			rule, err := eng.GetRule(c.Request.Context(), id)
			if err != nil {
				fail(c, logger, err)
				return
			}
			c.JSON(200, rule.Description())
		})

		routes.POST("", func(c *gin.Context) {
			var req webModels.AddRuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.Trigger == nil || req.Effect == nil {
				c.JSON(400, gin.H{"error": "trigger and effect are required"})
				return
			}

			desc := models.RuleDescription{
				Name:    req.Name,
				Enabled: req.Enabled == nil || *req.Enabled,
				Trigger: *req.Trigger,
				Effect:  *req.Effect,
			}
			rule, err := eng.NewRule(desc)
			if err != nil {
				fail(c, logger, err)
				return
			}
			id, err := eng.AddRule(c.Request.Context(), rule)
			if err != nil {
				fail(c, logger, err)
				return
			}
			c.JSON(201, webModels.AddRuleResponse{ID: id})
		})

		routes.PUT("/:id", func(c *gin.Context) {
			id, ok := ruleID(c)
			if !ok {
				return
			}
			if _, err := eng.GetRule(c.Request.Context(), id); err != nil {
				fail(c, logger, err)
				return
			}

			var desc models.RuleDescription
			if err := c.ShouldBindJSON(&desc); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			desc.ID = id
			rule, err := eng.NewRule(desc)
			if err != nil {
				fail(c, logger, err)
				return
			}
			if err := eng.UpdateRule(c.Request.Context(), id, rule); err != nil {
				fail(c, logger, err)
				return
			}
			c.JSON(200, gin.H{})
		})

		routes.DELETE("/:id", func(c *gin.Context) {
			id, ok := ruleID(c)
			if !ok {
				return
			}
			if err := eng.DeleteRule(c.Request.Context(), id); err != nil {
				fail(c, logger, err)
				return
			}
			c.JSON(200, gin.H{})
		})
	}
}

// ruleID parses the :id parameter. Ids that are not numbers cannot exist.
func ruleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(404, gin.H{"error": "Rule not found"})
		return 0, false
	}
	return id, true
}

func fail(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, rules.ErrInvalidDescription):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrRuleNotFound):
		c.JSON(404, gin.H{"error": "Rule not found"})
	default:
		logger.Error("Rule request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(500, gin.H{"error": "Internal error"})
	}
}

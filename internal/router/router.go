package router

import (
	"net/http"
	"time"

	"github.com/blues/pledge/internal/config"
	"github.com/blues/pledge/internal/event"
	"github.com/blues/pledge/internal/handler"
	"github.com/blues/pledge/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(escrow *logic.Escrow, hub *event.Hub, gatherer prometheus.Gatherer, cfg config.ServerConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()

	// 中间件
	r.Use(recoveryMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(loggerMiddleware())
	r.Use(corsMiddleware())
	r.Use(rateLimitMiddleware(cfg.RateLimitRPS))
	r.Use(callerMiddleware(cfg.RequireSignature, cfg.SignatureWindow, time.Now))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if err := escrow.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "pledge"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "pledge",
			"subscribers": hub.Count(),
		})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	projectHandler := handler.NewProjectHandler(escrow)
	contributionHandler := handler.NewContributionHandler(escrow)
	milestoneHandler := handler.NewMilestoneHandler(escrow)
	refundHandler := handler.NewRefundHandler(escrow)
	rewardHandler := handler.NewRewardHandler(escrow)
	platformHandler := handler.NewPlatformHandler(escrow)
	eventHandler := handler.NewEventHandler(escrow, hub)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		projects := v1.Group("/projects")
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.GetProjects)
			projects.GET("/count", projectHandler.ProjectCount)
			projects.GET("/:id", projectHandler.GetProject)
			projects.GET("/:id/milestones", projectHandler.GetMilestones)
			projects.GET("/:id/backers", projectHandler.GetBackers)
			projects.GET("/:id/contributions", contributionHandler.GetContributions)
			projects.GET("/:id/contributions/:backer", contributionHandler.GetContribution)
			projects.POST("/:id/contributions", contributionHandler.Contribute)
			projects.POST("/:id/milestones/:index/submit", milestoneHandler.SubmitMilestone)
			projects.POST("/:id/milestones/:index/votes", milestoneHandler.Vote)
			projects.GET("/:id/milestones/:index/votes", milestoneHandler.GetVotes)
			projects.POST("/:id/refunds", refundHandler.Refund)
			projects.GET("/:id/transfers", refundHandler.GetTransfers)
			projects.GET("/:id/transfers/stats", refundHandler.GetTransferStats)
			projects.GET("/:id/rewards/:backer", rewardHandler.GetBackerNFTs)
		}

		rewards := v1.Group("/rewards")
		{
			rewards.GET("/balance/:backer", rewardHandler.BalanceOf)
			rewards.GET("/:tokenId", rewardHandler.GetNFTMetadata)
		}

		platform := v1.Group("/platform")
		{
			platform.GET("/fee", platformHandler.GetFee)
			platform.PUT("/fee", platformHandler.SetFee)
		}

		v1.GET("/stats", projectHandler.GetStats)
		v1.GET("/events/ws", eventHandler.Stream)
	}

	return r
}

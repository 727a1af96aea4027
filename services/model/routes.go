// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches the model runtime surface to a gin router.
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/health", h.Health)

	v1 := router.Group("/v1/model")
	{
		v1.POST("/execute", h.Execute)
		v1.POST("/query", h.QueryModel)
		v1.GET("", h.GetModel)
		v1.GET("/operations", h.Operations)
		v1.GET("/documents", h.ListDocuments)

		v1.GET("/jobs", h.ListJobs)
		v1.GET("/jobs/:id", h.GetJob)
		v1.DELETE("/jobs/:id", h.CancelJob)

		v1.GET("/subscriptions", h.ListSubscriptions)
		v1.DELETE("/subscriptions/:id", h.DeleteSubscription)
		v1.GET("/subscriptions/ws", h.WebSocket)
	}
}

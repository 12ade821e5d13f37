package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, handler *Handler) {
	// Health check
	// Output: {"status": "ok"}
	r.GET("/health", handler.HealthCheck)

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint
	// Upgrade to WebSocket connection for the packet feed
	r.GET("/ws", handler.HandleWebSocket)

	// API routes
	api := r.Group("/api")
	{
		// Packet ingest and inspection
		packets := api.Group("/packets")
		{
			// POST /api/packets
			// Input: [{"device_id": "phone-001", "packet_start_us": ..., "sensors": [...]}]
			// Output: {"stored": 10, "received": 12, "error": "..."}
			packets.POST("", handler.StorePackets)

			// GET /api/packets/stats
			// Output: [{"device_key": "phone-001:abc:0", "packet_count": 42, ...}]
			packets.GET("/stats", handler.GetPacketStats)

			// DELETE /api/packets
			// Drops every stored packet
			packets.DELETE("", handler.ClearPackets)
		}

		// Window assembly and history
		windows := api.Group("/windows")
		{
			// POST /api/windows
			// Input: {"start_us": ..., "end_us": ..., "padding_us": ...}
			// Output: {"window": {...}, "report": {"errors": [...], ...}}
			windows.POST("", handler.AssembleWindow)

			// GET /api/windows
			// Query params: limit, offset, startTime, endTime (RFC3339)
			// Output: [{"window_id": "...", "device_count": 2, ...}]
			windows.GET("", handler.GetWindows)

			// GET /api/windows/:windowId
			// Output: {"window": {...}, "segments": [...]}
			windows.GET("/:windowId", handler.GetWindow)
		}

		// GET /api/segments?deviceId=phone-001
		// Persisted segment summaries for one device
		api.GET("/segments", handler.GetSegments)
	}
}

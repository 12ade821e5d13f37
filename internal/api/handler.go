package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"sensor-window-service/internal/ingest"
	"sensor-window-service/internal/models"
	"sensor-window-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		// In production, you should restrict this
		return true
	},
}

type Handler struct {
	windowService *service.WindowService
	hub           *ingest.Hub
}

func NewHandler(windowService *service.WindowService, hub *ingest.Hub) *Handler {
	return &Handler{
		windowService: windowService,
		hub:           hub,
	}
}

// WebSocket Handler
func (h *Handler) HandleWebSocket(c *gin.Context) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
		return
	}
	if h.hub.IsDeviceConnected(deviceID) {
		c.JSON(http.StatusConflict, gin.H{"error": "device already connected: " + deviceID})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := ingest.NewClient(h.hub, conn, deviceID)
	h.hub.Register <- client

	// Start client pumps in goroutines
	go client.WritePump()
	go client.ReadPump()
}

// Packet Handlers

// StorePackets accepts a batch of decoded packets over HTTP. Invalid
// packets are skipped; the response reports how many were stored.
func (h *Handler) StorePackets(c *gin.Context) {
	var packets []*models.DecodedPacket
	if err := c.ShouldBindJSON(&packets); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.windowService.StorePacketBatch(packets)
	resp := gin.H{
		"stored":   stored,
		"received": len(packets),
	}
	if err != nil {
		resp["error"] = err.Error()
	}

	if stored == 0 && len(packets) > 0 {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPacketStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.windowService.PacketStats())
}

func (h *Handler) ClearPackets(c *gin.Context) {
	h.windowService.ClearPackets()
	c.JSON(http.StatusOK, gin.H{"message": "packet store cleared"})
}

// Window Handlers

// AssembleWindow runs window assembly over the stored packets and returns
// the full window alongside the error report.
func (h *Handler) AssembleWindow(c *gin.Context) {
	var req models.WindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	window, report, err := h.windowService.AssembleWindow(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window": window,
		"report": report,
	})
}

// GetWindows lists persisted window summaries, optionally filtered by a
// time range overlapping the windows.
func (h *Handler) GetWindows(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	offsetStr := c.DefaultQuery("offset", "0")
	startTimeStr := c.Query("startTime")
	endTimeStr := c.Query("endTime")

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
		return
	}

	offset, err := strconv.Atoi(offsetStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset parameter"})
		return
	}

	var summaries []*models.WindowSummary

	if startTimeStr != "" && endTimeStr != "" {
		startTime, err1 := time.Parse(time.RFC3339, startTimeStr)
		endTime, err2 := time.Parse(time.RFC3339, endTimeStr)

		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time format, use RFC3339"})
			return
		}

		summaries, err = h.windowService.GetWindowSummariesByTimeRange(startTime, endTime, limit, offset)
	} else {
		summaries, err = h.windowService.GetWindowSummaries(limit, offset)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetWindow returns one persisted window summary with its segment summaries.
func (h *Handler) GetWindow(c *gin.Context) {
	windowID := c.Param("windowId")

	summary, err := h.windowService.GetWindowSummary(windowID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	segments, err := h.windowService.GetSegmentSummaries(windowID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window":   summary,
		"segments": segments,
	})
}

// GetSegments lists persisted segment summaries for a device.
func (h *Handler) GetSegments(c *gin.Context) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	offsetStr := c.DefaultQuery("offset", "0")

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
		return
	}

	offset, err := strconv.Atoi(offsetStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset parameter"})
		return
	}

	segments, err := h.windowService.GetSegmentSummariesByDevice(deviceID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, segments)
}

// Health Check
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"time":             time.Now().Unix(),
		"connectedDevices": h.hub.ConnectedDevices(),
		"cache":            h.windowService.CacheStatus(),
	})
}

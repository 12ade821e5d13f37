// Package ingest accepts decoded sensor packets from recording devices
// over websocket connections and feeds them into the packet store.
package ingest

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"sensor-window-service/internal/metrics"
	"sensor-window-service/internal/models"
)

// PacketSink receives validated packets from connected devices. The window
// service implements it; the indirection keeps this package free of a
// service dependency.
type PacketSink interface {
	StorePacket(p *models.DecodedPacket) error
	StoredCount(deviceKey string) int
}

type Hub struct {
	// Registered clients (deviceID -> Client)
	Clients map[string]*Client

	// Register requests from the clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	sink PacketSink

	mu sync.RWMutex
}

func NewHub(sink PacketSink) *Hub {
	return &Hub{
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		sink:       sink,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client.DeviceID] = client
			h.mu.Unlock()
			metrics.ActiveConnections.Inc()
			log.Printf("Client registered: %s", client.DeviceID)

			msg := models.ConnectedMessage{
				Type:       models.MessageTypeConnected,
				DeviceID:   client.DeviceID,
				ServerTime: time.Now().UnixMicro(),
			}
			client.SendMessage(msg)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Clients[client.DeviceID]; ok {
				delete(h.Clients, client.DeviceID)
				close(client.Send)
				metrics.ActiveConnections.Dec()
				log.Printf("Client unregistered: %s", client.DeviceID)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) HandleMessage(client *Client, message []byte) {
	var baseMsg models.WSMessage
	if err := json.Unmarshal(message, &baseMsg); err != nil {
		log.Printf("Failed to unmarshal message from %s: %v", client.DeviceID, err)
		h.sendError(client, "BAD_MESSAGE", "message is not valid JSON")
		return
	}

	switch baseMsg.Type {
	case models.MessageTypePacket:
		var packetMsg models.PacketMessage
		if err := json.Unmarshal(message, &packetMsg); err != nil {
			log.Printf("Failed to unmarshal packet from %s: %v", client.DeviceID, err)
			h.sendError(client, "BAD_PACKET", "packet payload is malformed")
			return
		}
		h.handlePacket(client, &packetMsg.Packet)

	default:
		log.Printf("Unknown message type: '%s' from client %s", baseMsg.Type, client.DeviceID)
		h.sendError(client, "UNKNOWN_TYPE", "unsupported message type: "+string(baseMsg.Type))
	}
}

func (h *Hub) handlePacket(client *Client, packet *models.DecodedPacket) {
	if packet.DeviceID == "" {
		packet.DeviceID = client.DeviceID
	}

	if err := h.sink.StorePacket(packet); err != nil {
		log.Printf("Rejected packet from %s: %v", client.DeviceID, err)
		h.sendError(client, "INVALID_PACKET", err.Error())
		return
	}

	// The ack carries the session's running total so devices can detect
	// lost uploads.
	ack := models.PacketAckMessage{
		Type:        models.MessageTypePacketAck,
		DeviceKey:   packet.DeviceKey(),
		StoredCount: h.sink.StoredCount(packet.DeviceKey()),
	}
	if err := client.SendMessage(ack); err != nil {
		log.Printf("Failed to send ack to device %s: %v", client.DeviceID, err)
	}
}

func (h *Hub) sendError(client *Client, code, message string) {
	errMsg := models.ErrorMessage{
		Type:    models.MessageTypeError,
		Code:    code,
		Message: message,
	}
	if err := client.SendMessage(errMsg); err != nil {
		log.Printf("Failed to send error to device %s: %v", client.DeviceID, err)
	}
}

// ConnectedDevices lists the device IDs currently connected.
func (h *Hub) ConnectedDevices() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.Clients))
	for id := range h.Clients {
		ids = append(ids, id)
	}
	return ids
}

// IsDeviceConnected checks if a device is currently connected
func (h *Hub) IsDeviceConnected(deviceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.Clients[deviceID]
	return ok
}

package ingest

import (
	"encoding/json"
	"testing"

	"sensor-window-service/internal/models"
)

// captureSink stores valid packets in memory, standing in for the window
// service behind the PacketSink interface.
type captureSink struct {
	packets []*models.DecodedPacket
}

func (s *captureSink) StorePacket(p *models.DecodedPacket) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.packets = append(s.packets, p)
	return nil
}

func (s *captureSink) StoredCount(deviceKey string) int {
	n := 0
	for _, p := range s.packets {
		if p.DeviceKey() == deviceKey {
			n++
		}
	}
	return n
}

func feedClient(hub *Hub, deviceID string) *Client {
	// No live websocket connection: HandleMessage and SendMessage only
	// touch the send channel.
	return NewClient(hub, nil, deviceID)
}

func packetJSON(t *testing.T, deviceID string, startUs float64) []byte {
	t.Helper()
	msg := models.PacketMessage{
		Type: models.MessageTypePacket,
		Packet: models.DecodedPacket{
			DeviceID:      deviceID,
			DeviceUUID:    "uuid",
			PacketStartUs: startUs,
			Sensors: []models.SensorChannel{
				{
					Name:       "pressure",
					Kind:       models.SensorKindBarometer,
					Timestamps: []float64{startUs},
					Values:     []float64{101.3},
				},
			},
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal packet message: %v", err)
	}
	return data
}

func receivedMessage(t *testing.T, client *Client, out interface{}) {
	t.Helper()
	select {
	case data := <-client.Send:
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("Failed to unmarshal client message: %v", err)
		}
	default:
		t.Fatal("Expected a message queued for the client")
	}
}

func TestHandleMessage_PacketStoredAndAcked(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(sink)
	client := feedClient(hub, "phone-1")

	hub.HandleMessage(client, packetJSON(t, "phone-1", 100))
	hub.HandleMessage(client, packetJSON(t, "phone-1", 200))

	if len(sink.packets) != 2 {
		t.Fatalf("Expected 2 packets in the sink, got %d", len(sink.packets))
	}

	// Each ack carries the session's running total.
	var first, second models.PacketAckMessage
	receivedMessage(t, client, &first)
	receivedMessage(t, client, &second)
	if first.Type != models.MessageTypePacketAck || first.StoredCount != 1 {
		t.Errorf("Unexpected first ack: %+v", first)
	}
	if second.StoredCount != 2 {
		t.Errorf("Expected running total 2 in second ack, got %d", second.StoredCount)
	}
	if second.DeviceKey != sink.packets[1].DeviceKey() {
		t.Errorf("Ack key %q does not match packet key %q", second.DeviceKey, sink.packets[1].DeviceKey())
	}
}

func TestHandleMessage_FillsDeviceIDFromConnection(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(sink)
	client := feedClient(hub, "phone-1")

	hub.HandleMessage(client, packetJSON(t, "", 100))

	if len(sink.packets) != 1 {
		t.Fatalf("Expected packet to be stored, got %d", len(sink.packets))
	}
	if sink.packets[0].DeviceID != "phone-1" {
		t.Errorf("Expected device id from the connection, got %q", sink.packets[0].DeviceID)
	}
}

func TestHandleMessage_RejectsMalformedAndUnknown(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(sink)
	client := feedClient(hub, "phone-1")

	tests := []struct {
		name    string
		message []byte
		code    string
	}{
		{"not JSON", []byte("{nope"), "BAD_MESSAGE"},
		{"unknown type", []byte(`{"type":"SELF_DESTRUCT"}`), "UNKNOWN_TYPE"},
		{"invalid packet", []byte(`{"type":"PACKET","packet":{"deviceId":"phone-1"}}`), "INVALID_PACKET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub.HandleMessage(client, tt.message)

			var errMsg models.ErrorMessage
			receivedMessage(t, client, &errMsg)
			if errMsg.Type != models.MessageTypeError || errMsg.Code != tt.code {
				t.Errorf("Expected %s error, got %+v", tt.code, errMsg)
			}
		})
	}
	if len(sink.packets) != 0 {
		t.Errorf("No packet should reach the sink, got %d", len(sink.packets))
	}
}

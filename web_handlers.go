package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/superm1/bulb_controller/kasa"
	"github.com/superm1/bulb_controller/state"
	. "github.com/superm1/bulb_controller/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// SystemStatus represents the overall fleet status
type SystemStatus struct {
	Bulbs          []state.BulbStatus `json:"bulbs"`
	TotalBulbs     int                `json:"total_bulbs"`
	ReachableBulbs int                `json:"reachable_bulbs"`
	BulbsOn        int                `json:"bulbs_on"`
}

var wsHub *WSHub

func init() {
	wsHub = NewHub()
	go wsHub.Run()
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		// Channel is full, skip this update
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Error().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Error().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Error().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket handles websocket requests from the peer
func ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  wsHub,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// APISystemStatus returns the overall fleet status as JSON
func APISystemStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	bulbs := registry.All()
	status := SystemStatus{
		Bulbs:      bulbs,
		TotalBulbs: len(bulbs),
	}
	for _, b := range bulbs {
		if b.Reachable() {
			status.ReachableBulbs++
		}
		if b.Power == kasa.PowerOn {
			status.BulbsOn++
		}
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		Logger.Error().Msgf("Error encoding system status: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// APIBulbDetail returns the last observed status of a single bulb
func APIBulbDetail(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("bulb")
	if name == "" {
		http.Error(w, "Bulb name required", http.StatusBadRequest)
		return
	}
	status, ok := registry.Get(name)
	if !ok {
		http.Error(w, "Bulb not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		Logger.Error().Msgf("Error encoding bulb status: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func StatusOverview(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Unix()
	if r.Method == "GET" {
		w.Header().Add("Content-Type", "text/html")
		writeString := func(s string) {
			if _, err := io.WriteString(w, s); err != nil {
				Logger.Error().Msgf("Error writing response: %v", err)
			}
		}
		writeString("<html><body><table>")
		writeString("<tr><th>Bulb</th><th>Power</th><th>Brightness</th><th>Reachable</th><th>Last Seen (seconds ago)</th></tr>")
		for _, status := range registry.All() {
			brightness := "-"
			if status.Info.Brightness != nil {
				brightness = fmt.Sprintf("%d%%", *status.Info.Brightness)
			}
			writeString("<tr>")
			writeString(fmt.Sprintf("<td><a href=\"/api/bulb?bulb=%s\">%s</a></td>", status.Name, status.Name))
			writeString(fmt.Sprintf("<td>%s</td>", status.Power))
			writeString(fmt.Sprintf("<td>%s</td>", brightness))
			writeString(fmt.Sprintf("<td>%v</td>", status.Reachable()))
			writeString(fmt.Sprintf("<td>%d</td>", now-status.LastSeen))
			writeString("</tr>")
		}
		writeString("</table></body></html>")
	} else {
		w.WriteHeader(400)
		if _, err := io.WriteString(w, "Bad Request Method\n"); err != nil {
			Logger.Error().Msgf("Error writing error response: %v", err)
		}
	}
}

func HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/bulb_status", http.StatusFound)
}

type modelapiresponseitem struct {
	Bulb   BulbSpec          `json:"bulb"`
	Status *state.BulbStatus `json:"status,omitempty"`
}

// ModelApi dumps the configured model with the last observed status per bulb
func ModelApi(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(400)
		if _, err := io.WriteString(w, "Bad Request Method\n"); err != nil {
			Logger.Error().Msgf("Error writing error response: %v", err)
		}
		return
	}
	answer := make(map[string]modelapiresponseitem)
	for _, spec := range model.Bulbs {
		item := modelapiresponseitem{Bulb: spec}
		if status, ok := registry.Get(spec.Name); ok {
			item.Status = &status
		}
		answer[spec.Name] = item
	}
	w.Header().Add("Content-Type", "application/json")
	data, err := json.Marshal(answer)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error marshaling response: %v", err), http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(data); err != nil {
		Logger.Error().Msgf("Error writing response: %v", err)
	}
}

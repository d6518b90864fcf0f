// Command wsserver consumes the published air-traffic topics and
// streams the latest joined flight records to WebSocket clients.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MulvadT/swim-adsb/internal/airtraffic"
	"github.com/MulvadT/swim-adsb/internal/kafka"
)

// --- Latest-batch cache ---

var (
	latest   = make(map[string][]airtraffic.FlightRecord)
	latestMu = &sync.RWMutex{}
)

func updateLatest(topic string, records []airtraffic.FlightRecord) {
	latestMu.Lock()
	latest[topic] = records
	latestMu.Unlock()
}

func snapshotLatest() map[string][]airtraffic.FlightRecord {
	latestMu.RLock()
	defer latestMu.RUnlock()
	out := make(map[string][]airtraffic.FlightRecord, len(latest))
	for topic, records := range latest {
		out[topic] = records
	}
	return out
}

// --- WebSocket server ---

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	clients   = make(map[*websocket.Conn]bool)
	clientsMu sync.Mutex
)

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	clientsMu.Lock()
	clients[conn] = true
	clientsMu.Unlock()
	log.Printf("New client connected: %s", conn.RemoteAddr())

	for {
		if _, _, err := conn.NextReader(); err != nil {
			clientsMu.Lock()
			delete(clients, conn)
			clientsMu.Unlock()
			log.Printf("Client disconnected: %s", conn.RemoteAddr())
			break
		}
	}
}

func broadcastTraffic() {
	msg, err := json.Marshal(snapshotLatest())
	if err != nil {
		log.Printf("JSON marshaling error: %v", err)
		return
	}

	clientsMu.Lock()
	for client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("WebSocket write error: %v", err)
			client.Close()
			delete(clients, client)
		}
	}
	clientsMu.Unlock()
}

func startWebSocketServer(addr string) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			broadcastTraffic()
		}
	}()

	http.HandleFunc("/ws", handleWebSocket)
	log.Printf("WebSocket server starting on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// --- Kafka consumers ---

func consumeTopic(ctx context.Context, broker, topic string) {
	r := kafka.NewReader(broker, topic, "swim-adsb-wsserver")
	defer r.Close()

	log.Printf("Consuming %s", topic)

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("read error on %s: %v", topic, err)
			time.Sleep(1 * time.Second)
			continue
		}

		var records []airtraffic.FlightRecord
		if err := json.Unmarshal(m.Value, &records); err != nil {
			log.Printf("unmarshal error on %s: %v", topic, err)
			continue
		}

		updateLatest(topic, records)
	}
}

// --- Main ---

func main() {
	broker := os.Getenv("KAFKA_BROKER")
	if broker == "" {
		broker = "localhost:9092"
	}
	topicList := os.Getenv("KAFKA_TOPICS")
	if topicList == "" {
		topicList = "arrivals.brussels,departures.brussels"
	}
	addr := os.Getenv("WS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, topic := range strings.Split(topicList, ",") {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		go consumeTopic(ctx, broker, topic)
	}
	go startWebSocketServer(addr)

	<-ctx.Done()
	log.Println("Shutting down")
}

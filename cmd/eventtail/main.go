// Command eventtail subscribes to the realtime event stream and prints each
// event. With -clients > 1 it doubles as a connection load test.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks connection and delivery counts.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

type event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	token := flag.String("token", os.Getenv("CITY_WORKFLOW_TOKEN"), "Bearer token (defaults to $CITY_WORKFLOW_TOKEN)")
	clients := flag.Int("clients", 1, "Number of concurrent connections")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	secure := flag.Bool("tls", false, "Use wss://")
	flag.Parse()

	if *token == "" {
		log.Fatal("❌ a token is required; issue one with: admin token issue <email>")
	}

	scheme := "ws"
	if *secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: *host, Path: "/api/ws/events"}
	log.Printf("📡 Tailing %s with %d client(s)", u.String(), *clients)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(u.String(), *token, i, i == 0, stopChan, &wg)
		if *clients > 1 {
			time.Sleep(20 * time.Millisecond)
		}
	}

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	select {
	case <-timeout:
		log.Println("⏱️  Duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted")
	}

	close(stopChan)
	wg.Wait()
	printMetrics()
}

func runClient(wsURL, token string, id int, verbose bool, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		if resp != nil {
			log.Printf("❌ client %d: dial failed with status %d: %v", id, resp.StatusCode, err)
		} else {
			log.Printf("❌ client %d: dial failed: %v", id, err)
		}
		return
	}
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					atomic.AddInt64(&metrics.Errors, 1)
					if verbose {
						log.Printf("connection closed: %v", err)
					}
				}
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if verbose {
				printEvent(msg)
			}
		}
	}()

	select {
	case <-stop:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
}

func printEvent(msg []byte) {
	var ev event
	if err := json.Unmarshal(msg, &ev); err != nil {
		fmt.Println(string(msg))
		return
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Printf("%s  %-22s %s\n", ts.Format(time.RFC3339), ev.Type, string(ev.Payload))
}

func printMetrics() {
	log.Println("📊 Results")
	log.Printf("Connections attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections succeeded: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections failed:    %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Events received:       %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Errors:                %d", atomic.LoadInt64(&metrics.Errors))
}

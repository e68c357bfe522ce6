// Command badge-monitor tails the event stream of a running badge service
// and prints every envelope it receives. Handy for watching verifications
// and mints land while poking at a dev server from another terminal.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	url := flag.String("url", getenv("EMBLEM_WS_URL", "ws://localhost:8080/ws"), "event stream endpoint")
	token := flag.String("token", os.Getenv("EMBLEM_WALLET_TOKEN"), "signed wallet token; empty watches shared channels only")
	channels := flag.String("channels", "verifications", "comma-separated channels to follow")
	flag.Parse()

	target := *url
	if *token != "" {
		target += "?token=" + *token
	}

	conn, resp, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("dial %s failed: %v (status %s)", *url, err, resp.Status)
		}
		log.Fatalf("dial %s failed: %v", *url, err)
	}
	defer conn.Close()
	log.Printf("connected to %s", *url)

	if names := splitChannels(*channels); len(names) > 0 {
		if err := conn.WriteJSON(map[string]interface{}{"type": "subscribe", "channels": names}); err != nil {
			log.Fatalf("subscribe failed: %v", err)
		}
		log.Printf("subscribing to %s", strings.Join(names, ", "))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var envelope struct {
				Type      string          `json:"type"`
				Channel   string          `json:"channel"`
				Timestamp time.Time       `json:"timestamp"`
				Payload   json.RawMessage `json:"payload"`
			}
			if err := conn.ReadJSON(&envelope); err != nil {
				log.Printf("stream closed: %v", err)
				return
			}
			scope := envelope.Channel
			if scope == "" {
				scope = "wallet"
			}
			fmt.Printf("%s  %-14s %-24s %s\n",
				envelope.Timestamp.Format("15:04:05"), scope, envelope.Type, string(envelope.Payload))
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("closing stream")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func splitChannels(list string) []string {
	var names []string
	for _, name := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

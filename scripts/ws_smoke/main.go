package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8000/ws", "WebSocket address")
	user := flag.String("user", utils.NewUserID(), "userId to send as")
	role := flag.String("role", "developer", "role to send as")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	var greeting proto.Received
	if err := wsjson.Read(ctx, conn, &greeting); err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}
	if greeting.Type != proto.OutboundTypeConnected {
		return fmt.Errorf("expected %q greeting, got %q", proto.OutboundTypeConnected, greeting.Type)
	}
	fmt.Printf("Greeting: %s\n", string(greeting.Data))

	sent := proto.Message{UserID: *user, Role: *role, Text: *text, TS: proto.Timestamp(time.Now())}
	frame, err := proto.EncodeMessage(sent)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var outbound proto.Received
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w (is the relay running with echo disabled?)", err)
		}

		switch outbound.Type {
		case proto.OutboundTypeError:
			return fmt.Errorf("relay rejected message: %v", outbound.Error)
		case proto.OutboundTypeMessage:
			var msg proto.Message
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: seq=%d user=%s role=%s text=%q ts=%s\n", msg.Seq, msg.UserID, msg.Role, msg.Text, msg.TS)
			if msg.UserID == sent.UserID && msg.Text == sent.Text {
				fmt.Println("OK: echo received")
				return nil
			}
		default:
			fmt.Printf("Ignored frame: type=%s\n", outbound.Type)
		}
	}
}

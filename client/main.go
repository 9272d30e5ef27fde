package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "chess-client",
		Usage: "join a room and play moves in coordinate notation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "localhost:8080",
				Usage: "server host:port",
			},
			&cli.StringFlag{
				Name:  "room",
				Value: "default",
				Usage: "room id to join",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(cmd.String("addr"), cmd.String("room"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(addr, room string) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/game", RawQuery: "game_id=" + url.QueryEscape(room)}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop: every frame is either a FEN or an "error:" line.
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			text := string(message)
			if strings.HasPrefix(text, "error:") {
				log.Printf("<- REJECTED: %s", strings.TrimPrefix(text, "error:"))
			} else {
				log.Printf("<- POSITION: %s", text)
			}
		}
	}()

	log.Println("Client started. Type a move like 'e2e4' and press Enter.")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return nil
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return nil
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				log.Println("Write error:", err)
				return nil
			}
			log.Printf("-> SENT: %s", text)
		}
	}
}

// Package main provides a simple CLI client for the chat WebSocket server.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Nex2i/Polygloss/internal/protocol"
)

// Client represents a WebSocket client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	done      chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, token string) (*Client, error) {
	if token != "" {
		addr += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// CreateSession requests a session and waits for the response.
func (c *Client) CreateSession(sessionID, userID string) error {
	msg := protocol.CreateSessionRequest{
		Envelope: protocol.Envelope{
			Type: protocol.EventCreateSession,
			Ts:   time.Now().UnixMilli(),
		},
		SessionID: sessionID,
		UserID:    userID,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write create-session: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read create-session response: %w", err)
	}

	var resp protocol.SessionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("unmarshal create-session response: %w", err)
	}
	if resp.Type != protocol.Success(protocol.EventCreateSession) || resp.Session == nil {
		var failure protocol.FailureResponse
		json.Unmarshal(data, &failure)
		return fmt.Errorf("create-session failed: %s", failure.Error)
	}

	c.sessionID = resp.Session.SessionID
	return nil
}

// SendChatMessage sends a message on the chat path.
func (c *Client) SendChatMessage(content string) error {
	return c.sendMessage(protocol.EventSendChatMessage, content)
}

// SendTrainingMessage sends a message on the agent-free training path.
func (c *Client) SendTrainingMessage(content string) error {
	return c.sendMessage(protocol.EventSendTrainingMessage, content)
}

func (c *Client) sendMessage(event, content string) error {
	msg := protocol.ChatMessageRequest{
		Envelope: protocol.Envelope{
			Type: event,
			Ts:   time.Now().UnixMilli(),
		},
		Content:   content,
		SessionID: c.sessionID,
	}
	return c.conn.WriteJSON(msg)
}

// RequestHistory asks for the session's message history.
func (c *Client) RequestHistory() error {
	msg := protocol.HistoryRequest{
		Envelope: protocol.Envelope{
			Type: protocol.EventGetChatHistory,
			Ts:   time.Now().UnixMilli(),
		},
		SessionID: c.sessionID,
	}
	return c.conn.WriteJSON(msg)
}

// RequestStats asks for the store's aggregate stats.
func (c *Client) RequestStats() error {
	msg := protocol.StatsRequest{
		Envelope: protocol.Envelope{
			Type: protocol.EventGetChatStats,
			Ts:   time.Now().UnixMilli(),
		},
	}
	return c.conn.WriteJSON(msg)
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var envelope protocol.Envelope
			if err := json.Unmarshal(data, &envelope); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}

			// Pretty print the event
			var prettyJSON map[string]interface{}
			json.Unmarshal(data, &prettyJSON)
			formatted, _ := json.MarshalIndent(prettyJSON, "", "  ")
			fmt.Printf("\n[%s] Received:\n%s\n", envelope.Type, string(formatted))
		}
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8090/ws", "WebSocket server address")
	token := flag.String("token", "", "Bearer token for user identification")
	sessionID := flag.String("session", "", "Session ID to resume (empty creates a new one)")
	userID := flag.String("user", "", "User ID to attach to the session")
	training := flag.Bool("training", false, "Use the agent-free training path")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, *token)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Println("Connected. Creating session...")

	if err := client.CreateSession(*sessionID, *userID); err != nil {
		log.Fatalf("Create session failed: %v", err)
	}

	fmt.Printf("Session established: %s\n", client.sessionID)
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /history, /stats, /quit")
	fmt.Println()

	// Start reading messages in background
	go client.ReadMessages()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			switch input {
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/history":
				if err := client.RequestHistory(); err != nil {
					log.Printf("Send error: %v", err)
				}
				continue
			case "/stats":
				if err := client.RequestStats(); err != nil {
					log.Printf("Send error: %v", err)
				}
				continue
			}

			send := client.SendChatMessage
			if *training {
				send = client.SendTrainingMessage
			}
			if err := send(input); err != nil {
				log.Printf("Send error: %v", err)
				continue
			}

			fmt.Println("Message sent, waiting for response...")
		}
	}
}

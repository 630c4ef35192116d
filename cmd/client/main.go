// Command client is a small interactive terminal client for a mystiko
// server. It speaks the newline-delimited JSON wire protocol directly, so
// it doubles as a manual testing tool.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/samber/lo"

	"mystiko/protocol"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string        `env:"MYSTIKO_SERVER_ADDR,default=localhost:5000"`
	DialTimeout   time.Duration `env:"MYSTIKO_DIAL_TIMEOUT,default=5s"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := net.DialTimeout("tcp", config.ServerAddress, config.DialTimeout)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer conn.Close()

	color.Green.Printf(">>> Connected to %s (Ctrl+C to quit)\n", config.ServerAddress)
	color.Gray.Println("Log in with: /login <user> <password>  or  /register <user> <password>")

	// Server frames render as they arrive, independent of the prompt.
	go func() {
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
		for scanner.Scan() {
			var frame protocol.ServerFrame
			if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
				color.Red.Printf("Unreadable frame: %v\n", err)
				continue
			}
			render(frame)
		}
		color.Yellow.Println("Server closed the connection")
		stop()
	}()

	input := make(chan string)
	go func() {
		defer close(input)
		stdin := bufio.NewScanner(os.Stdin)
		for stdin.Scan() {
			input <- stdin.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			color.Yellow.Println("Stopping client...")
			return exitOK, nil
		case line, ok := <-input:
			if !ok {
				return exitOK, nil
			}
			frame, ok := toFrame(line)
			if !ok {
				continue
			}
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			if _, err := conn.Write(append(data, '\n')); err != nil {
				return exitRuntime, fmt.Errorf("write failed: %w", err)
			}
		}
	}
}

// toFrame turns one input line into a wire frame. Auth and room management
// use client-side slash commands; everything else is sent as chat content
// and interpreted by the server.
func toFrame(line string) (protocol.ClientFrame, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return protocol.ClientFrame{}, false
	}

	verb, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(verb) {
	case "/login", "/register":
		username, password, ok := strings.Cut(rest, " ")
		if !ok {
			color.Red.Printf("Usage: %s <user> <password>\n", verb)
			return protocol.ClientFrame{}, false
		}
		return protocol.ClientFrame{
			Action:   strings.TrimPrefix(strings.ToLower(verb), "/"),
			Username: username,
			Password: lo.ToPtr(password),
		}, true
	case "/create":
		name, description, _ := strings.Cut(rest, " | ")
		return protocol.ClientFrame{Type: "create_room", RoomName: name, Description: description}, true
	case "/join":
		name, password, hasPassword := strings.Cut(rest, " | ")
		frame := protocol.ClientFrame{Type: "join_room", RoomName: name}
		if hasPassword {
			frame.Password = lo.ToPtr(password)
		}
		return frame, true
	case "/delete":
		return protocol.ClientFrame{Type: "delete_room", RoomName: rest}, true
	case "/rooms":
		return protocol.ClientFrame{Type: "list_rooms", Search: rest}, true
	case "/myrooms":
		return protocol.ClientFrame{Type: "get_my_rooms"}, true
	case "/help":
		printHelp()
		return protocol.ClientFrame{}, false
	case "/clear":
		color.Normal.Print("\033[H\033[2J")
		return protocol.ClientFrame{}, false
	default:
		return protocol.ClientFrame{Type: "message", Content: line}, true
	}
}

func render(frame protocol.ServerFrame) {
	switch {
	case frame.Status == "success":
		color.Green.Printf("✔ %s\n", frame.Message)
	case frame.Status == "error", frame.Type == protocol.TypeError:
		color.Red.Printf("✘ %s\n", frame.Message)
	case frame.Type == protocol.TypeSystem:
		color.Yellow.Printf("[%s] %s\n", frame.Timestamp, frame.Message)
	case frame.Type == protocol.TypeMessage:
		color.Cyan.Printf("[%s] %s: ", frame.Timestamp, frame.Username)
		color.Normal.Println(frame.Message)
	case frame.Type == protocol.TypePrivate:
		color.Magenta.Printf("[%s] (private) %s: %s\n", frame.Timestamp, frame.From, frame.Message)
	case frame.Type == protocol.TypePrivateSent:
		color.Gray.Printf("[%s] (to %s) %s\n", frame.Timestamp, frame.To, frame.Message)
	case frame.Type == protocol.TypeChatHistory:
		color.Gray.Printf("--- last %d messages ---\n", frame.Count)
		for _, message := range frame.Messages {
			color.Gray.Printf("[%s] %s: %s\n", message.Timestamp, message.Username, message.Content)
		}
	case frame.Type == protocol.TypeRoomList, frame.Type == protocol.TypeMyRooms:
		for _, room := range frame.Rooms {
			lock := ""
			if room.IsPrivate {
				lock = " 🔒"
			}
			color.Normal.Printf("%s%s (%d online) - %s\n", room.Name, lock, room.UserCount, room.Description)
		}
	case frame.Type == protocol.TypeRoomUsers:
		color.Normal.Printf("In %s: %s\n", frame.RoomName, strings.Join(frame.Users, ", "))
	default:
		color.Normal.Println(frame.Message)
	}
}

func printHelp() {
	color.Gray.Println(`Commands:
  /login <user> <password>     log in
  /register <user> <password>  create an account
  /create <room> [| <desc>]    create a room
  /join <room> [| <password>]  join a room
  /delete <room>               delete a room you created
  /rooms [search]              list rooms
  /myrooms                     list rooms you created
  /pm <user> <message>         private message (server-side)
  /users                       members of your room (server-side)
  /leave                       leave your room (server-side)
  /logout                      log out and disconnect
Anything else is sent to your current room.`)
}

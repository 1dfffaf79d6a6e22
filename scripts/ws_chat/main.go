package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// ivSize matches the browser client, which frames a random IV alongside the
// RSA-OAEP ciphertext even though OAEP does not consume it.
const ivSize = 12

type peers struct {
	mu   sync.Mutex
	keys map[string]*rsa.PublicKey
}

func (p *peers) set(user proto.UserInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if user.PublicKey == "" {
		delete(p.keys, user.Username)
		return
	}
	key, err := parsePublicKey(user.PublicKey)
	if err != nil {
		log.Printf("ignoring key for %s: %v", user.Username, err)
		return
	}
	p.keys[user.Username] = key
}

func (p *peers) remove(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, username)
}

func (p *peers) get(username string) (*rsa.PublicKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.keys[username]
	return key, ok
}

func (p *peers) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.keys))
	for name := range p.keys {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	flag.Parse()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	spki, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	joinPayload, err := json.Marshal(proto.JoinData{
		User:      *user,
		PublicKey: base64.StdEncoding.EncodeToString(spki),
		Protocol:  proto.ProtocolVersion,
	})
	if err != nil {
		return fmt.Errorf("marshal join: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Data: joinPayload}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type to broadcast. /msg <user> <text> sends encrypted, /who lists keys. Ctrl+C to exit.")

	directory := &peers{keys: make(map[string]*rsa.PublicKey)}

	go func() {
		defer cancel()
		readLoop(ctx, conn, privateKey, directory)
	}()

	writeLoop(ctx, conn, directory)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, privateKey *rsa.PrivateKey, directory *peers) {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Printf("! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventRoster:
			var evt proto.EventRosterData
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal roster: %v", err)
				continue
			}
			names := make([]string, 0, len(evt.Users))
			for _, u := range evt.Users {
				directory.set(u)
				names = append(names, u.Username)
			}
			fmt.Printf("* online: %s\n", strings.Join(names, ", "))
		case proto.EventUserJoined:
			var evt proto.UserInfo
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal user_joined: %v", err)
				continue
			}
			directory.set(evt)
			fmt.Printf("* %s joined\n", evt.Username)
		case proto.EventUserLeft:
			var evt proto.UserInfo
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal user_left: %v", err)
				continue
			}
			directory.remove(evt.Username)
			fmt.Printf("* %s left\n", evt.Username)
		case proto.EventDisplaced:
			fmt.Println("* your username was taken over by another connection")
		case proto.EventMessage:
			var evt proto.EventMessageData
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("%s: %s\n", evt.User.Username, evt.Text)
		case proto.EventPrivateMessage:
			var evt proto.EventPrivateMessageData
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal private_message: %v", err)
				continue
			}
			text, err := decrypt(privateKey, evt.Ciphertext)
			if err != nil {
				log.Printf("decrypt from %s: %v", evt.User.Username, err)
				continue
			}
			fmt.Printf("[private] %s: %s\n", evt.User.Username, text)
		default:
			fmt.Printf("event=%s data=%s\n", outbound.Event, string(outbound.Data))
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, directory *peers) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var inbound proto.Inbound
			switch {
			case text == "/who":
				fmt.Printf("* keys known for: %s\n", strings.Join(directory.names(), ", "))
				continue
			case strings.HasPrefix(text, "/msg "):
				frame, err := privateFrame(directory, strings.TrimPrefix(text, "/msg "))
				if err != nil {
					fmt.Printf("! %v\n", err)
					continue
				}
				inbound = frame
			default:
				payload, err := json.Marshal(proto.MsgData{Text: text})
				if err != nil {
					log.Printf("marshal msg: %v", err)
					return
				}
				inbound = proto.Inbound{Type: proto.InboundTypeMsg, Data: payload}
			}

			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}

func privateFrame(directory *peers, args string) (proto.Inbound, error) {
	to, text, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(text) == "" {
		return proto.Inbound{}, errors.New("usage: /msg <user> <text>")
	}
	key, ok := directory.get(to)
	if !ok {
		return proto.Inbound{}, fmt.Errorf("no public key for %s", to)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return proto.Inbound{}, fmt.Errorf("generate iv: %w", err)
	}
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, key, []byte(text), nil)
	if err != nil {
		return proto.Inbound{}, fmt.Errorf("encrypt: %w", err)
	}

	payload, err := json.Marshal(proto.PrivateData{
		To: to,
		Envelope: base64.StdEncoding.EncodeToString(iv) + ":" +
			base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return proto.Inbound{}, fmt.Errorf("marshal private: %w", err)
	}
	return proto.Inbound{Type: proto.InboundTypePrivate, Data: payload}, nil
}

func parsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA key")
	}
	return key, nil
}

func decrypt(privateKey *rsa.PrivateKey, encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// feed pushes every appended block to connected /ws/blocks clients,
// adapted from the register/unregister/broadcast hub idiom in
// DanDo385-go-edu's websocket-chatroom exercise, simplified to a
// single implicit room since every client wants the same block
// stream.
type feed struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func newFeed() *feed {
	return &feed{clients: make(map[*wsClient]bool)}
}

func (f *feed) broadcast(b jsonBlock) {
	payload, err := json.Marshal(b)
	if err != nil {
		log.Printf("api: marshal block for feed: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
			close(c.send)
			delete(f.clients, c)
		}
	}
}

func (f *feed) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 16)}
	f.mu.Lock()
	f.clients[c] = true
	f.mu.Unlock()

	go f.writePump(c)
	go f.readPump(c)
}

func (f *feed) readPump(c *wsClient) {
	defer func() {
		f.mu.Lock()
		delete(f.clients, c)
		f.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *feed) writePump(c *wsClient) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

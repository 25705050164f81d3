package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

type notificationFrame struct {
	Type      map[string]struct{} `json:"type"`
	Info      string              `json:"info"`
	ContentID string              `json:"contentID"`
}

type memberFrame struct {
	User   map[string]string `json:"user"`
	Joined bool              `json:"joined"`
}

type postFrame struct {
	PostID int    `json:"postID"`
	Text   string `json:"text"`
}

var (
	addr       = flag.String("addr", ":8081", "listen address")
	basePath   = flag.String("base", "/api/v3", "path prefix shared by every socket")
	interval   = flag.Duration("interval", 5*time.Second, "time between pushed notifications")
	fezIDs     = flag.String("fez", "", "comma separated fez IDs to target; random when empty")
	dropEvery  = flag.Int("drop-every", 0, "close each client after N frames to exercise reconnects (0 = never)")
	memberRate = flag.Float64("member-rate", 0.2, "probability a conversation frame is a membership change")
)

var kinds = []string{
	"fezUnreadMsg",
	"seamailUnreadMsg",
	"addedToLFG",
	"removedFromLFG",
	"lfgCanceled",
	"announcement",
	"followedEventStarting",
	"joinedLFGStarting",
	"twarrtMention",
}

type client struct {
	conn  net.Conn
	fezID string
	sent  int
}

type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.conn.Close()
}

func (h *hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	targets := splitIDs(*fezIDs)
	h := &hub{clients: make(map[*client]struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc(*basePath+"/notification/socket", func(w http.ResponseWriter, r *http.Request) {
		serveSocket(h, w, r, "")
	})
	mux.HandleFunc(*basePath+"/fez/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, *basePath+"/fez/")
		id, ok := strings.CutSuffix(rest, "/socket")
		if !ok || id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		serveSocket(h, w, r, id)
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		fmt.Printf("Serving notification sockets on ws://localhost%s%s/notification/socket\n", *addr, *basePath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "listen: %v\n", err)
			os.Exit(1)
		}
	}()

	go push(ctx, h, targets)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	for _, c := range h.snapshot() {
		h.remove(c)
	}
	fmt.Println("Simulator stopped")
}

func serveSocket(h *hub, w http.ResponseWriter, r *http.Request, fezID string) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upgrade %s: %v\n", r.URL.Path, err)
		return
	}

	c := &client{conn: conn, fezID: fezID}
	h.add(c)
	fmt.Printf("client connected: %s (auth=%t)\n", r.URL.Path, r.Header.Get("Authorization") != "")

	// Drain pings and detect disconnects.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				fmt.Printf("client gone: %s: %v\n", r.URL.Path, err)
				return
			}
		}
	}()
}

func push(ctx context.Context, h *hub, targets []string) {
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, c := range h.snapshot() {
			frame, err := nextFrame(c, targets)
			if err != nil {
				fmt.Fprintf(os.Stderr, "encode: %v\n", err)
				continue
			}
			if err := wsutil.WriteServerText(c.conn, frame); err != nil {
				h.remove(c)
				continue
			}
			c.sent++
			fmt.Printf("-> %s\n", frame)

			if *dropEvery > 0 && c.sent%*dropEvery == 0 {
				fmt.Println("dropping client to force a reconnect")
				h.remove(c)
			}
		}
	}
}

func nextFrame(c *client, targets []string) ([]byte, error) {
	if c.fezID != "" {
		if rand.Float64() < *memberRate {
			return json.Marshal(memberFrame{
				User:   map[string]string{"userID": uuid.NewString(), "username": "sim"},
				Joined: rand.Intn(2) == 0,
			})
		}
		return json.Marshal(postFrame{PostID: rand.Intn(10000), Text: "simulated post"})
	}

	kind := kinds[rand.Intn(len(kinds))]
	contentID := uuid.NewString()
	if len(targets) > 0 {
		contentID = targets[rand.Intn(len(targets))]
	}
	return json.Marshal(notificationFrame{
		Type:      map[string]struct{}{kind: {}},
		Info:      "simulated " + kind,
		ContentID: contentID,
	})
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

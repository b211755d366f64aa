// Package transport carries raftpb.Message between host processes over
// HTTP, the same role the teacher's http_handler.go/client.go pair plays
// for its own AppendEntries/RequestVote request types — generalized here
// to the single uniform Message envelope the core actually produces.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Konstantsiy/raftkv/raftpb"
)

// Inbox is how the transport hands a received message back to the host:
// the HTTP handler never calls into a raft.RawNode directly, only enqueues
// here, so the core is still entered from a single serialized loop.
type Inbox interface {
	Receive(m raftpb.Message)
}

// Handler answers inbound /raft/step requests by decoding the message and
// handing it to an Inbox.
type Handler struct {
	inbox Inbox
}

// NewHandler returns a Handler that delivers every decoded message to inbox.
func NewHandler(inbox Inbox) *Handler {
	return &Handler{inbox: inbox}
}

// RegisterHandlers mounts the transport's single endpoint on mux.
func (h *Handler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/raft/step", h.handleStep)
}

func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var m raftpb.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.inbox.Receive(m)
	w.WriteHeader(http.StatusOK)
}

// Client sends messages to peer addresses over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client with the teacher's own short send timeout;
// a stuck peer must never stall the host loop's message fan-out.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 500 * time.Millisecond},
	}
}

// Send POSTs m to addr's /raft/step endpoint. Failures are the caller's
// to retry or ignore — the core never blocks on message delivery.
func (c *Client) Send(addr string, m raftpb.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("transport: cannot marshal message: %w", err)
	}

	url := fmt.Sprintf("http://%s/raft/step", addr)
	resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("transport: cannot send to %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transport: unexpected status code from %s: %d", addr, resp.StatusCode)
	}
	return nil
}

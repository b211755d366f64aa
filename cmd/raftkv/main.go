// Command raftkv runs a single node of a replicated key-value cluster.
// It is adapted from the teacher's cmd/main.go: parse flags, load the
// cluster config, start the host loop and the HTTP listener, wait for a
// shutdown signal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Konstantsiy/raftkv/internal/hostconfig"
	"github.com/Konstantsiy/raftkv/internal/kvstore"
	"github.com/Konstantsiy/raftkv/internal/raftd"
	"github.com/Konstantsiy/raftkv/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML cluster config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		// Containers in the e2e harness bake their config into an env var
		// rather than mounting a file; RAFTKV_CONFIG holds the same YAML
		// hostconfig.Load would otherwise read from disk.
		inline := os.Getenv("RAFTKV_CONFIG")
		if inline == "" {
			log.Fatal("config must be provided via -config or RAFTKV_CONFIG")
		}
		tmp, err := os.CreateTemp("", "raftkv-config-*.yaml")
		if err != nil {
			log.Fatalf("failed to stage inline config: %v", err)
		}
		if _, err := tmp.WriteString(inline); err != nil {
			log.Fatalf("failed to stage inline config: %v", err)
		}
		_ = tmp.Close()
		path = tmp.Name()
	}

	cfg, err := hostconfig.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	node, err := raftd.New(cfg)
	if err != nil {
		log.Fatalf("failed to start node: %v", err)
	}

	go node.Run()
	defer node.Stop()

	handler := transport.NewHandler(node)
	mux := http.NewServeMux()
	handler.RegisterHandlers(mux)
	registerClientAPI(mux, node)

	httpServer := &http.Server{Addr: cfg.Node.Address, Handler: mux}

	go func() {
		log.Printf("node %d listening on %s", cfg.Node.ID, cfg.Node.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

// registerClientAPI exposes the key-value store to clients over HTTP,
// alongside the peer-to-peer /raft/step endpoint: GET /kv/{key} reads the
// local replica, PUT/DELETE propose a command and block until it commits.
func registerClientAPI(mux *http.ServeMux, node *raftd.Node) {
	mux.HandleFunc("/kv/", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/kv/"):]
		if key == "" {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			val, ok := node.Get(key)
			if !ok {
				http.Error(w, "key not found", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(val)

		case http.MethodPut:
			var value []byte
			if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			payload, err := kvstore.EncodePut(key, value)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			proposeAndRespond(w, r, node, payload)

		case http.MethodDelete:
			payload, err := kvstore.EncodeDelete(key)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			proposeAndRespond(w, r, node, payload)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func proposeAndRespond(w http.ResponseWriter, r *http.Request, node *raftd.Node, payload []byte) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := node.Propose(ctx, payload); err != nil {
		http.Error(w, fmt.Sprintf("propose failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Package main runs a CurveZMQ/ledger-protocol echo server: accept
// connections, CurveZMQ-authenticate them against a persisted
// identity, and REQACK/REPLY every request it receives
// (original_source's __main__.py "server" action, spec.md §7).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mr-tron/base58"

	"github.com/andrewwhitehead/indy-zmq/pkg/keystore"
	"github.com/andrewwhitehead/indy-zmq/pkg/ledgerclient"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Host to listen on")
	port := flag.Int("port", 9700, "Port to listen on")
	keyPath := flag.String("keyfile", "./keys/server.db", "Path to persisted identity store")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*keyPath), 0700); err != nil {
		log.Fatalf("Failed to create key directory: %v", err)
	}

	store, err := keystore.Open(*keyPath)
	if err != nil {
		log.Fatalf("Failed to open key store: %v", err)
	}
	defer store.Close()

	keys, err := store.LoadOrGenerateIdentity()
	if err != nil {
		log.Fatalf("Failed to load/generate identity: %v", err)
	}

	log.Printf("server verkey: %s", base58.Encode(keys.Verkey))

	server := ledgerclient.NewServer(ledgerclient.EchoHandler, keys)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()
	}()

	log.Printf("listening on %s:%d", *host, *port)
	if err := server.Run(ctx, *host, *port); err != nil && ctx.Err() == nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("goodbye")
}

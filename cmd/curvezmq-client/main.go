// Package main runs a one-shot CurveZMQ/ledger-protocol client: dial a
// server, submit one request, print its result
// (original_source's __main__.py "client" action, spec.md §7).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/andrewwhitehead/indy-zmq/pkg/keystore"
	"github.com/andrewwhitehead/indy-zmq/pkg/ledgerclient"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Server host")
	port := flag.Int("port", 9700, "Server port")
	verkey := flag.String("verkey", "", "Server base58 verkey (required, or -peer)")
	peer := flag.String("peer", "", "Address book nickname to resolve the server verkey from")
	keyPath := flag.String("keyfile", "", "Path to persisted identity/address-book store")
	reqID := flag.Int("reqid", 123, "reqId to submit")
	identifier := flag.String("identifier", "LibindyDid111111111111", "request identifier field")
	timeout := flag.Duration("timeout", 10*time.Second, "overall request timeout")
	flag.Parse()

	var store *keystore.Store
	if *keyPath != "" {
		if err := os.MkdirAll(filepath.Dir(*keyPath), 0700); err != nil {
			log.Fatalf("Failed to create key directory: %v", err)
		}
		var err error
		store, err = keystore.Open(*keyPath)
		if err != nil {
			log.Fatalf("Failed to open key store: %v", err)
		}
		defer store.Close()
	}

	serverVerkey := *verkey
	if serverVerkey == "" && *peer != "" {
		if store == nil {
			log.Fatal("-peer requires -keyfile")
		}
		p, err := store.Peer(*peer)
		if err != nil {
			log.Fatalf("Failed to resolve peer %q: %v", *peer, err)
		}
		serverVerkey = p.Verkey
	}
	if serverVerkey == "" {
		log.Fatal("Missing required -verkey (or -peer with -keyfile)")
	}
	if *peer != "" && store != nil && *verkey != "" {
		if err := store.SavePeer(*peer, *verkey); err != nil {
			log.Fatalf("Failed to save peer %q: %v", *peer, err)
		}
	}

	client, err := ledgerclient.NewClient(serverVerkey)
	if err != nil {
		log.Fatalf("Failed to construct client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.Dial(ctx, *host, *port); err != nil {
		log.Fatalf("Failed to dial %s:%d: %v", *host, *port, err)
	}
	defer client.Close()

	request := map[string]any{
		"reqId":      *reqID,
		"identifier": *identifier,
		"operation":  map[string]any{"data": 1, "ledgerId": 1, "type": "3"},
		"protocolVersion": 2,
	}
	handle, err := client.Request(request)
	if err != nil {
		log.Fatalf("Failed to submit request: %v", err)
	}

	result, err := handle.Result(ctx)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}

// Applies a delete or share to the configured file store, the same call the
// API makes after executing a proposal.
//
//	go run ./scripts/storage <delete|share> <cid>
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/stake-plus/filedao/src/drive"
	"github.com/stake-plus/filedao/src/governance"
	"github.com/stake-plus/filedao/src/logging"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalf("usage: %s <delete|share> <cid>", os.Args[0])
	}
	typ, err := governance.ParseProposalType(os.Args[1])
	if err != nil || typ == governance.Upload {
		log.Fatalf("operation must be delete or share")
	}

	url := os.Getenv("DRIVE_URL")
	if url == "" {
		log.Fatal("DRIVE_URL not set")
	}
	client := drive.NewClient(url, os.Getenv("DRIVE_API_KEY"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err = client.Apply(ctx, governance.Effect{Type: typ, CID: os.Args[2]})
	switch {
	case logging.IsRateLimit(err):
		log.Fatalf("file store is rate limiting: %v", err)
	case err != nil:
		log.Fatalf("apply: %v", err)
	}
	log.Printf("%s applied to %s", typ, os.Args[2])
}

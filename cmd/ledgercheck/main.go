package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/stake-plus/filedao/src/api/data"
	"github.com/stake-plus/filedao/src/governance"
)

var (
	dsnFlag     = flag.String("dsn", os.Getenv("MYSQL_DSN"), "MySQL DSN (default $MYSQL_DSN)")
	timeoutFlag = flag.Duration("timeout", 30*time.Second, "Overall timeout")
	listFlag    = flag.Bool("proposals", false, "Print every proposal")
)

// ledgercheck loads the persisted ledger, rebuilds the engine from it and
// reports whether the stored state is consistent.
func main() {
	log.SetFlags(0)
	flag.Parse()
	if *dsnFlag == "" {
		log.Fatal("no DSN: pass -dsn or set MYSQL_DSN")
	}

	db, err := data.ConnectMySQL(*dsnFlag)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	st, found, err := data.NewStore(db).Load(ctx)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	if !found {
		fmt.Println("ledger is empty")
		return
	}

	engine, err := governance.Restore(st)
	if err != nil {
		log.Fatalf("ledger is inconsistent: %v", err)
	}

	now := time.Now().UTC()
	stats := engine.Stats(now)
	fmt.Printf("admin:     %s\n", engine.Admin())
	fmt.Printf("members:   %d\n", stats.Members)
	fmt.Printf("proposals: %d (%d active, %d executed)\n", stats.Proposals, stats.ActiveProposals, stats.Executed)
	fmt.Printf("shared:    %d\n", stats.SharedFiles)

	if *listFlag {
		for _, p := range engine.Proposals() {
			status, _ := engine.Status(p.ID, now)
			fmt.Printf("#%-5d %-7s %-9s yes=%-3d no=%-3d %s %s\n",
				p.ID, p.Type, status, p.YesVotes, p.NoVotes, p.CID, p.FileName)
		}
	}
}

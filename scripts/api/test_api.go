// Minimal end-to-end check of a running FileDAO API. ADMIN_SEED is the hex
// sr25519 mini secret of the configured admin.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/google/uuid"
)

var (
	baseURL = getenv("API_URL", "http://localhost:8080/v1")
	seedHex = os.Getenv("ADMIN_SEED")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	secret, addr := adminKey()

	nonce := challenge(addr)
	token := verify(addr, sign(secret, nonce))

	cid := "bafk-smoke-" + uuid.NewString()
	id := propose(token, cid)
	vote(token, id)

	log.Printf("waiting for proposal %d to close", id)
	time.Sleep(6 * time.Second)

	execute(token, id)
	checkAccess(token, cid, addr)
	checkStats()

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- auth

func adminKey() (*schnorrkel.SecretKey, string) {
	raw, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil || len(raw) != 32 {
		log.Fatal("ADMIN_SEED must be 32 hex bytes")
	}
	var seed [32]byte
	copy(seed[:], raw)
	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(seed)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	pub := msk.Public().Encode()
	return msk.ExpandEd25519(), "0x" + hex.EncodeToString(pub[:])
}

func sign(sk *schnorrkel.SecretKey, msg string) string {
	sig, err := sk.Sign(schnorrkel.NewSigningContext([]byte("substrate"), []byte(msg)))
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	raw := sig.Encode()
	return "0x" + hex.EncodeToString(raw[:])
}

func challenge(addr string) string {
	var resp struct{ Nonce string }
	doJSON("POST", "/auth/challenge", map[string]any{"address": addr}, &resp, http.StatusOK)
	if resp.Nonce == "" {
		log.Fatal("challenge: empty nonce")
	}
	return resp.Nonce
}

func verify(addr, sig string) string {
	var resp struct{ Token string }
	doJSON("POST", "/auth/verify", map[string]any{
		"address":   addr,
		"signature": sig,
	}, &resp, http.StatusOK)
	if resp.Token == "" {
		log.Fatal("verify: empty token")
	}
	return resp.Token
}

// ----------------------------- proposals

func propose(tok, cid string) uint64 {
	var resp struct{ ID uint64 }
	doAuth(tok, "POST", "/proposals", map[string]any{
		"type":         "upload",
		"cid":          cid,
		"fileName":     "smoke.txt",
		"fileSize":     5,
		"votingPeriod": 5,
	}, &resp, http.StatusCreated)
	return resp.ID
}

func vote(tok string, id uint64) {
	doAuth(tok, "POST", fmt.Sprintf("/proposals/%d/votes", id), map[string]any{"support": true}, nil, http.StatusCreated)
}

func execute(tok string, id uint64) {
	var resp struct{ Executed, Synced bool }
	doAuth(tok, "POST", fmt.Sprintf("/proposals/%d/execute", id), nil, &resp, http.StatusOK)
	if !resp.Executed {
		log.Fatal("execute: not executed")
	}
}

func checkAccess(tok, cid, addr string) {
	var resp struct{ Access bool }
	doAuth(tok, "GET", "/access/"+cid+"?address="+addr, nil, &resp, http.StatusOK)
	if !resp.Access {
		log.Fatal("access: proposer has no access after upload")
	}
}

func checkStats() {
	var stats map[string]uint64
	doJSON("GET", "/stats", nil, &stats, http.StatusOK)
	if stats["executed"] == 0 {
		log.Fatal("stats: executed count missing")
	}
}

// ----------------------------- helpers

func doAuth(token, method, path string, body, out any, want int) {
	doReq(method, path, token, body, out, want)
}

func doJSON(method, path string, body, out any, want int) {
	doReq(method, path, "", body, out, want)
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}

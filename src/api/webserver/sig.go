package webserver

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var errBadAddress = errors.New("invalid address")

var ss58Prefix = []byte("SS58PRE")

// decodeSS58 converts an SS58 or 0x-hex address to the raw 32-byte public
// key, validating the SS58 checksum.
func decodeSS58(addr string) ([]byte, error) {
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		pk, err := hex.DecodeString(addr[2:])
		if err != nil || len(pk) != 32 {
			return nil, errBadAddress
		}
		return pk, nil
	}

	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, errBadAddress
	}
	var prefixLen int
	switch len(raw) {
	case 35:
		prefixLen = 1
	case 36:
		prefixLen = 2
	default:
		return nil, errBadAddress
	}

	body := raw[:len(raw)-2]
	sum := blake2b.Sum512(append(append([]byte{}, ss58Prefix...), body...))
	if !bytes.Equal(sum[:2], raw[len(raw)-2:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", errBadAddress)
	}
	return raw[prefixLen : prefixLen+32], nil
}

// NormalizeAddress maps every accepted address form to lower-case 0x-hex of
// the public key, the form stored in the ledger.
func NormalizeAddress(addr string) (string, error) {
	pk, err := decodeSS58(strings.TrimSpace(addr))
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(pk), nil
}

func strip0x(s string) string {
	if len(s) > 1 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}

func verifySignature(addr, sigHex, nonce string) error {
	pubKeyBytes, err := decodeSS58(addr)
	if err != nil {
		log.Printf("Failed to decode address %s: %v", addr, err)
		return err
	}

	sigBytes, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return err
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(sigBytes))
	}

	var pkRaw [32]byte
	copy(pkRaw[:], pubKeyBytes)
	var sigRaw [64]byte
	copy(sigRaw[:], sigBytes)

	var pk schnorrkel.PublicKey
	if err = pk.Decode(pkRaw); err != nil {
		return err
	}

	var sig schnorrkel.Signature
	if err = sig.Decode(sigRaw); err != nil {
		return err
	}

	ctx := schnorrkel.NewSigningContext([]byte("substrate"), []byte(nonce))
	valid, err := pk.Verify(&sig, ctx)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

func issueJWT(addr string, secret []byte, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

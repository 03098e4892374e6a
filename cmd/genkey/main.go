// Command genkey generates a random signing key for share tokens and
// prints it hex-encoded, ready for the SIGNING_KEY environment variable.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func main() {
	size := flag.Int("size", 32, "key size in bytes (minimum 32)")
	flag.Parse()

	if *size < 32 {
		fmt.Fprintln(os.Stderr, "key size must be at least 32 bytes")
		os.Exit(1)
	}

	key := make([]byte, *size)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("SIGNING_KEY=%s\n", hex.EncodeToString(key))
}

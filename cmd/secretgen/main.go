package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func main() {
	size := flag.Int("bytes", 32, "number of random bytes in the secret")
	flag.Parse()

	if *size < 32 {
		fmt.Println("Usage: go run cmd/secretgen/main.go [-bytes N]")
		fmt.Println("Generates a random signing secret for access tokens (N >= 32)")
		os.Exit(1)
	}

	buf := make([]byte, *size)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read random bytes: %v\n", err)
		os.Exit(1)
	}
	secret := hex.EncodeToString(buf)

	fmt.Printf("JWT Secret: %s\n", secret)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("  auth:\n")
	fmt.Printf("    jwt_secret: \"%s\"\n", secret)
	fmt.Println("\nOr export it:")
	fmt.Printf("  export JWT_SECRET=%s\n", secret)
}

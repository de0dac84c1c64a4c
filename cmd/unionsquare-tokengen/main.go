// Command unionsquare-tokengen provisions a new bearer token for
// UNIONSQUARE_ACCEPTED_TOKENS: it prints the plain token (add to config
// and give to the client once) and its SHA256 hash, the form config.Load
// keeps in memory for the hot-path comparison.
package main

import (
	"flag"
	"fmt"

	"github.com/unionsquare/unionsquare/internal/auth"
)

func main() {
	length := flag.Int("bytes", 32, "entropy in bytes for the generated token")
	flag.Parse()

	hasher := auth.NewTokenHasher()
	plain, hashed, err := hasher.GenerateSecureToken(*length)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println("token (add to UNIONSQUARE_ACCEPTED_TOKENS, give to client once):", plain)
	fmt.Println("hash  (SHA256 form compared on each request):", hashed)
}

// Package main generates an admin API key and the bcrypt hash to put in
// admin.api_key_hash (or MOVE_BOOKING_ADMIN_API_KEY_HASH).
//
// Usage:
//
//	admin-key
//	admin-key --key mbk_existing... # hash an existing key
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sungwon/move-booking/internal/auth"
)

func main() {
	key := flag.String("key", "", "Hash this key instead of generating a new one")
	flag.Parse()

	if *key == "" {
		generated, err := auth.GenerateAPIKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		*key = generated
	}

	hash, err := auth.HashKey(*key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key:  %s\n", *key)
	fmt.Printf("Hash:     %s\n", hash)
	fmt.Println()
	fmt.Println("Store the key somewhere safe; only the hash goes in the config:")
	fmt.Printf("  MOVE_BOOKING_ADMIN_API_KEY_HASH='%s'\n", hash)
}

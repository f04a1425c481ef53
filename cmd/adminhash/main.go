package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/pharmacal-api/pkg/auth"
	"github.com/arnavshah/pharmacal-api/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: adminhash <password>")
		fmt.Println("       adminhash ref <unique_code> <booking_nonce>")
		os.Exit(1)
	}

	if os.Args[1] == "ref" {
		if len(os.Args) != 4 {
			fmt.Println("Usage: adminhash ref <unique_code> <booking_nonce>")
			os.Exit(1)
		}
		// Loads .env so the booking reference secret matches the server's
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		ref := auth.New(cfg).SignBookingRef(os.Args[2], os.Args[3])
		fmt.Printf("Booking reference for %s:\n%s\n", os.Args[2], ref)
		return
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}

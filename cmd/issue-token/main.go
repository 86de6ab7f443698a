// Command issue-token mints a bearer token whose subject is a player or
// contract address, for use against the kozakd API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/config"
	"github.com/R3E-Network/kozak_economy/internal/middleware"
)

func main() {
	configPath := flag.String("config", os.Getenv("KOZAK_CONFIG"), "configuration file providing auth.jwt_secret and auth.issuer")
	subject := flag.String("sub", "", "caller address (0x...)")
	label := flag.String("derive", "", "derive the caller address from a label instead of -sub")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var caller address.Address
	switch {
	case *label != "":
		caller = address.Derive(*label)
	case *subject != "":
		if caller, err = address.Parse(*subject); err != nil {
			log.Fatalf("parse -sub: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(1)
	}

	lifetime := *ttl
	if lifetime == 0 {
		lifetime = cfg.Auth.TokenTTL
	}
	token, err := middleware.IssueToken([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, caller, lifetime, time.Now())
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "subject=%s\n", caller)
	fmt.Println(token)
}

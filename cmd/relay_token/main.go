package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"email-gate/internal/service"
)

// relay_token imprime un bearer token para un gateway de chat.
func main() {
	relay := flag.String("relay", "gateway", "relay name, used as token subject")
	ttl := flag.Duration("ttl", service.DefaultRelayTTL, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("RELAY_JWT_SECRET")
	if secret == "" {
		log.Fatal("RELAY_JWT_SECRET is required")
	}

	token, expiresAt, err := service.NewRelayTokenService(secret, *ttl).Issue(*relay)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "relay=%s expires_at=%s\n", *relay, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}

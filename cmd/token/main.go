package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/hackgods/appointment-engine/internal/auth"
	"github.com/hackgods/appointment-engine/internal/config"
)

// token prints a bearer token signed with JWT_SECRET for local testing.
func main() {
	subject := flag.String("sub", "dev-user", "token subject")
	business := flag.String("business", "", "business id claim")
	role := flag.String("role", auth.RoleBusiness, "role claim (business or admin)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *role != auth.RoleBusiness && *role != auth.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer).Issue(*subject, *business, *role, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}

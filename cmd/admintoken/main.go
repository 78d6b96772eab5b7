// Command admintoken prints a bearer token for the admin HTTP API, signed
// with JWT_SECRET for ADMIN_ID.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/iliyamo/meeting-room-bot/internal/middleware"
	"github.com/iliyamo/meeting-room-bot/internal/utils"
)

type env struct {
	AdminID      int64  `envconfig:"ADMIN_ID" required:"true"`
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`
}

func main() {
	_ = godotenv.Load()
	var e env
	if err := envconfig.Process("", &e); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ttl := flag.Int("ttl", e.AccessTTLMin, "token lifetime in minutes")
	flag.Parse()

	tok, err := utils.NewAccessToken(e.JWTSecret, e.AdminID, middleware.RoleAdmin, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04:05Z07:00"))
}

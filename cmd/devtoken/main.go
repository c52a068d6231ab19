// Command devtoken mints an access token for local testing against a server
// sharing the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pms-assistant/internal/middleware"
)

func main() {
	godotenv.Load()
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})

	userFlag := flag.String("user", "", "user id to embed (random when empty)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			log.Fatal().Err(err).Str("user", *userFlag).Msg("invalid user id")
		}
		userID = parsed
	}

	token, err := middleware.NewJWTAuth(secret).GenerateAccessToken(userID, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}

	log.Info().Str("user_id", userID.String()).Dur("ttl", *ttl).Msg("token issued")
	fmt.Println(token)
}

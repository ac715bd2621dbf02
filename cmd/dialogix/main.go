package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/Kiplya/DialogiX/internal/app"
)

func main() {
	// Env vars set in the environment take precedence over .env.
	_ = godotenv.Load(".env")

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}

// Command createuser provisions a user with a fresh API key. The plaintext
// key is printed exactly once; only its hash is stored.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/app/repository"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/database"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
)

func main() {
	name := flag.String("name", "", "display name of the user")
	email := flag.String("email", "", "email address, must be unique")
	password := flag.String("password", "", "initial password")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" {
		log.Fatal("usage: createuser -name NAME -email EMAIL -password PASSWORD")
	}

	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())

	user, err := models.CreateUser(*name, *email, *password)
	if err != nil {
		log.Fatalf("invalid user: %v", err)
	}

	apiKey, err := models.GenerateAPIKey()
	if err != nil {
		log.Fatalf("failed to generate api key: %v", err)
	}
	user.APIKeyHash = models.HashAPIKey(apiKey)

	if err := repository.GetGlobalRepositories().User.Create(user); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}

	fmt.Printf("Created user %d (%s)\n", user.ID, user.Email)
	fmt.Printf("API key (shown once, store it now): %s\n", apiKey)
}

// Command issue-token mints a development access token for a directory user.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/pkg/config"
)

func main() {
	userID := flag.String("user", "", "user id (required)")
	role := flag.String("role", string(models.RoleStudent), "student, teacher or admin")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "full name claim")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("refusing to mint tokens in production")
	}
	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	auth := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Expiry: cfg.JWT.Expiration, Issuer: "advising-api"}, nil)
	token, expires, err := auth.IssueToken(&models.User{
		ID:       *userID,
		Role:     models.UserRole(*role),
		Email:    *email,
		FullName: *name,
	})
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Println(token)
}

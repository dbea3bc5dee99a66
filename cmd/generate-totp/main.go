package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"bridge-backend/internal/handlers"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// generate-totp prints a fresh admin TOTP secret and, with -password, the bcrypt hash for auth.adminPasswordHash
func main() {
	account := flag.String("account", "admin@bridge", "Account name shown in the authenticator app")
	password := flag.String("password", "", "Admin password to hash (optional)")
	flag.Parse()

	key, err := handlers.NewTOTPKey(*account)
	if err != nil {
		log.Fatalf("Failed to generate TOTP secret: %v", err)
	}
	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		log.Fatalf("Failed to generate TOTP code: %v", err)
	}

	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Println("🔐 Admin TOTP Secret")
	fmt.Println(line)
	fmt.Printf("Secret:       %s\n", key.Secret())
	fmt.Printf("URL:          %s\n", key.URL())
	fmt.Printf("Current code: %s\n", code)

	if *password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Printf("Password hash: %s\n", hash)
	}

	fmt.Println()
	fmt.Println("export ADMIN_TOTP_SECRET=" + key.Secret())
	if *password != "" {
		fmt.Println("Set auth.adminPasswordHash (or ADMIN_PASSWORD_HASH) to the hash above")
	}
}

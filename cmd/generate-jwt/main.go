package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"bridge-backend/internal/config"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/handlers"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	address := flag.String("address", "0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "Wallet address the token is issued to")
	scope := flag.String("scope", dto.ScopeUser, "Token scope: user | admin")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !common.IsHexAddress(*address) {
		log.Fatalf("Invalid address %q", *address)
	}
	if *scope != dto.ScopeUser && *scope != dto.ScopeAdmin {
		log.Fatalf("Invalid scope %q", *scope)
	}

	tokens := handlers.NewTokenService(config.AppConfig.Auth)
	addr := common.HexToAddress(*address)
	tokenString, expiresAt, err := tokens.Issue(addr, *scope)
	if err != nil {
		log.Fatalf("Error generating token: %v", err)
	}

	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Println("JWT Token Generated for Testing")
	fmt.Println(line)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Println("Claims:")
	fmt.Printf("  Address: %s\n", addr.Hex())
	fmt.Printf("  Scope: %s\n", *scope)
	fmt.Printf("  Expires: %s\n", expiresAt)
	fmt.Println()
	fmt.Println(line)
	fmt.Println("Usage:")
	fmt.Println(line)
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:%d/api/transfers\n", tokenString, config.AppConfig.Server.Port)
	fmt.Println()
}

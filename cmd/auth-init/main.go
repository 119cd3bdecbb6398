// Command auth-init bootstraps credentials for a deployment.
//
//	auth-init hash              reads a password from stdin and prints its bcrypt hash for ADMIN_PASSWORD_HASH
//	auth-init token -user ID    prints a user token signed with JWT_SECRET, for local testing
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"motolucro/internal/auth"
	"motolucro/internal/cli"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cli.LoadEnvFile()

	switch os.Args[1] {
	case "hash":
		hash(os.Args[2:])
	case "token":
		token(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: auth-init hash [-cost N] | token -user ID [-email E] [-ttl D]")
	os.Exit(2)
}

func hash(args []string) {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	_ = fs.Parse(args)

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("read password: %v", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if len(password) < 8 {
		log.Fatalf("password must be at least 8 characters")
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), *cost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(string(h))
}

func token(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	user := fs.String("user", "", "user id (token subject)")
	email := fs.String("email", "", "user email")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if *user == "" {
		log.Fatalf("-user is required")
	}
	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 16 {
		log.Fatalf("JWT_SECRET must be set (at least 16 characters)")
	}

	tok, exp, err := auth.NewTokens(secret).Sign(auth.Identity{UserID: *user, Email: *email}, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Token for %s expires %s\n", *user, exp.Format(time.RFC3339))
	fmt.Println(tok)
}

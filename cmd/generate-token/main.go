// Command generate-token bootstraps the stored Twitch credential without
// running the full service: it prints the authorization URL, reads the code
// pasted back from the browser redirect, exchanges it, and writes the token
// file the service refreshes from afterwards.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"

	"github.com/onnwee/twitch-ingest/auth"
	"github.com/onnwee/twitch-ingest/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	clientID := cfg.TwitchClientID
	if clientID == "" {
		clientID = prompt(reader, "Enter your Twitch Client ID: ")
	}
	clientSecret := cfg.TwitchClientSecret
	if clientSecret == "" {
		clientSecret = prompt(reader, "Enter your Twitch Client Secret: ")
	}
	if clientID == "" || clientSecret == "" {
		slog.Error("client id and secret are required")
		os.Exit(1)
	}

	oc := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  cfg.TwitchRedirectURI,
		Scopes:       strings.Fields(cfg.TwitchScopes),
		Endpoint:     twitch.Endpoint,
	}

	fmt.Println("1. Open this URL in your browser and authorize the application:")
	fmt.Printf("   %s\n", oc.AuthCodeURL("bootstrap"))
	fmt.Printf("2. You will be redirected to %s?code=...\n", cfg.TwitchRedirectURI)
	fmt.Println("3. Copy the \"code\" query parameter from the URL")

	code := prompt(reader, "Paste the authorization code here: ")
	if code == "" {
		slog.Error("no authorization code provided")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		slog.Error("code exchange failed", slog.Any("err", err))
		os.Exit(1)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	store := auth.FileStore{Path: cfg.TokenFile}
	if err := store.Save(auth.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiry.UnixMilli(),
	}); err != nil {
		slog.Error("failed to write token file", slog.Any("err", err))
		os.Exit(1)
	}

	fmt.Printf("Token saved to %s (expires %s)\n", cfg.TokenFile, expiry.UTC().Format(time.RFC3339))
}

func prompt(r *bufio.Reader, q string) string {
	fmt.Print(q)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

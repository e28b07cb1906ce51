package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/questline/internal/client/api"
	"github.com/iudanet/questline/internal/client/storage"
	apitypes "github.com/iudanet/questline/pkg/api"
)

func (c *Cli) runSignup(ctx context.Context) error {
	c.io.Println("=== Sign up ===")
	c.io.Println()

	login, err := c.io.ReadInput("Login: ")
	if err != nil {
		return fmt.Errorf("failed to read login: %w", err)
	}
	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	resp, err := c.api.Signup(ctx, apitypes.SignupRequest{
		Login:    strings.TrimSpace(login),
		Email:    strings.TrimSpace(email),
		Password: password,
	})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Account created!")
	c.io.Printf("Login: %s\n", resp.User.Login)
	c.io.Printf("User ID: %s\n", resp.User.UUID)
	return nil
}

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	login, err := c.io.ReadInput("Login: ")
	if err != nil {
		return fmt.Errorf("failed to read login: %w", err)
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	resp, err := c.api.Login(ctx, apitypes.LoginRequest{Login: strings.TrimSpace(login), Password: password})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Login: %s\n", resp.User.Login)
	if !resp.AccessExpiresAt.IsZero() {
		c.io.Printf("Access token expires: %s\n", resp.AccessExpiresAt.Local().Format(time.RFC3339))
	}
	c.io.Println("Your session has been saved.")
	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	if _, err := c.store.GetAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("failed to get auth data: %w", err)
	}

	// Сервер уже забыл сессию: удаляем локальную копию и считаем выход успешным
	if err := c.api.Logout(ctx); err != nil && !api.IsUnauthorized(err) {
		return fmt.Errorf("logout failed: %w", err)
	}
	if err := c.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")
	return nil
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()

	auth, err := c.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			c.io.Println("Status: Not authenticated")
			c.io.Println()
			c.io.Println("Run 'questline login' to authenticate.")
			return nil
		}
		return fmt.Errorf("failed to get auth data: %w", err)
	}

	now := c.now()
	if !auth.RefreshAlive(now) {
		c.io.Println("Status: Session expired")
		c.io.Printf("Login: %s\n", auth.Login)
		c.io.Println("⚠️  Please login again.")
		return nil
	}

	c.io.Println("Status: Authenticated")
	c.io.Printf("Login: %s\n", auth.Login)
	if auth.ServerURL != "" {
		c.io.Printf("Server: %s\n", auth.ServerURL)
	}
	c.io.Printf("Access token: %s\n", describeExpiry(now, auth.AccessExpiresAt))
	c.io.Printf("Session: %s\n", describeExpiry(now, auth.RefreshExpiresAt))

	// Запрос к серверу заодно ротирует просроченный access token
	me, err := c.api.Me(ctx)
	if err != nil {
		c.io.Printf("\nWarning: failed to fetch profile: %v\n", err)
		return nil
	}
	c.io.Printf("Roles: %s\n", strings.Join(me.Roles, ", "))
	return nil
}

func describeExpiry(now time.Time, unix int64) string {
	if unix == 0 {
		return "unknown"
	}
	at := time.Unix(unix, 0)
	if !now.Before(at) {
		return "expired at " + at.Local().Format(time.RFC3339)
	}
	return fmt.Sprintf("valid until %s (%s left)", at.Local().Format(time.RFC3339), at.Sub(now).Round(time.Second))
}

package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/credential"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/store"
)

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	baseURL := cfg.Server.BaseURL
	if loginBaseURL != "" {
		baseURL = loginBaseURL
	}
	token := loginToken

	if token == "" {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Server URL").
					Description("Household server (e.g., https://home.example.com)").
					Value(&baseURL).
					Validate(validateURL),
				huh.NewInput().
					Title("Session token").
					Description("Token issued by the household server").
					EchoMode(huh.EchoModePassword).
					Value(&token).
					Validate(validateRequired("Token")),
			),
		)
		if err := form.RunWithContext(cmd.Context()); err != nil {
			return fmt.Errorf("login form: %w", err)
		}
	} else if err := validateURL(baseURL); err != nil {
		return err
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	token = strings.TrimSpace(token)

	ctx, cancel := context.WithTimeout(cmd.Context(), model.Seconds(cfg.Server.RequestTimeoutSec))
	defer cancel()
	user, err := api.NewClient(baseURL, api.StaticToken(token),
		api.WithRetry(cfg.Server.MaxRetries, time.Second, 5*time.Second),
	).Me(ctx)
	if err != nil {
		return fmt.Errorf("verifying token: %w", err)
	}

	tokens, err := credential.OpenTokens(model.ConfigDir())
	if err != nil {
		return err
	}
	if err := tokens.SetToken(baseURL, token); err != nil {
		return err
	}

	if baseURL != cfg.Server.BaseURL {
		cfg.Server.BaseURL = baseURL
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s.\n", baseURL, user.Name)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	tokens, err := rt.openTokens()
	if err != nil {
		return err
	}
	if err := tokens.DeleteToken(rt.cfg.Server.BaseURL); err != nil {
		return err
	}
	if err := store.SetActiveHousehold(cmd.Context(), rt.kv, ""); err != nil {
		return err
	}

	rt.log.Info().Str("server", rt.cfg.Server.BaseURL).Msg("logged out")
	fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s.\n", rt.cfg.Server.BaseURL)
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("URL must be http(s) with a host (e.g., https://home.example.com)")
	}
	return nil
}

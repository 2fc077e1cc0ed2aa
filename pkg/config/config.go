package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Config holds the process-level settings read from the environment.
type Config struct {
	Addr          string `env:"ADDR" envDefault:":8080"`
	AppURL        string `env:"APP_URL" envDefault:"http://localhost:8080"`
	SessionSecret string `env:"SESSION_SECRET"`

	GitHubClientID     string   `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string   `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string   `env:"GITHUB_REDIRECT_URL"`
	GitHubScopes       []string `env:"GITHUB_SCOPES" envSeparator:"," envDefault:"repo,user"`
	GitHubAPIURL       string   `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	GitHubRawURL       string   `env:"GITHUB_RAW_URL" envDefault:"https://raw.githubusercontent.com"`

	SiteConfigPath string `env:"SITE_CONFIG" envDefault:"devblog.yml"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found or error loading it.")
	}
	return Parse()
}

// Parse reads the process environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if cfg.GitHubRedirectURL == "" {
		cfg.GitHubRedirectURL = cfg.AppURL + "/auth/callback"
	}
	return &cfg, nil
}

// OAuth2 returns the GitHub authorization-code flow configuration.
func (c *Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.GitHubClientID,
		ClientSecret: c.GitHubClientSecret,
		Scopes:       c.GitHubScopes,
		Endpoint:     github.Endpoint,
		RedirectURL:  c.GitHubRedirectURL,
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PASETO_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Server.Env)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 5*time.Minute, cfg.Auth.LoginCodeDuration)
	assert.Equal(t, "/onboarding", cfg.Onboarding.OnboardingPath)
	assert.Equal(t, 30*time.Second, cfg.Onboarding.PreferencesCacheTTL)
}

func TestLoad_RejectsShortPasetoKey(t *testing.T) {
	t.Setenv("PASETO_KEY", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PASETO_KEY")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PASETO_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("ROUTE_DASHBOARD", "/app")
	t.Setenv("PREFERENCES_CACHE_TTL", "60")
	t.Setenv("TRUSTED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "/app", cfg.Onboarding.DashboardPath)
	assert.Equal(t, 60*time.Second, cfg.Onboarding.PreferencesCacheTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.TrustedOrigins)
}

func TestOnboardingConfig_PathFor(t *testing.T) {
	cfg := OnboardingConfig{
		LoginPath:      "/login",
		OnboardingPath: "/onboarding",
		DashboardPath:  "/dashboard",
		ContactPath:    "/contact-sales",
	}

	assert.Equal(t, "/login", cfg.PathFor("login"))
	assert.Equal(t, "/dashboard", cfg.PathFor("dashboard"))
	assert.Equal(t, "/contact-sales", cfg.PathFor("contact"))
	assert.Equal(t, "/onboarding", cfg.PathFor("onboarding"))
	assert.Equal(t, "/onboarding", cfg.PathFor("unknown"))
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: "5432", User: "svc", Password: "pw",
		DBName: "onboard", SSLMode: "require", ChannelBinding: "require",
	}

	got := cfg.ConnectionString()
	assert.Contains(t, got, "host=db")
	assert.Contains(t, got, "dbname=onboard")
	assert.Contains(t, got, "channel_binding=require")
}

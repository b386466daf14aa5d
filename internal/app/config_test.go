package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("RENDER_TIMEOUT", "90s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	require.Equal(t, 90*time.Second, cfg.Render.Timeout)
	require.Equal(t, 1000.0, cfg.Render.MinArea)
	require.Equal(t, "gpt-image-1", cfg.Render.Model)

	rc := cfg.renderConfig()
	require.Equal(t, 90*time.Second, rc.Timeout)
	require.Equal(t, 0.3, rc.Temperature)
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("POSTGRES_NAME", "from_env")
	path := filepath.Join(t.TempDir(), "roomviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9999"
database:
  driver: postgres
  name: from_file
estimate:
  floor_area_m2: 12.5
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, "from_env", cfg.Database.Name)
	require.Equal(t, 12.5, cfg.Estimate.FloorAreaM2)
}

func TestLoadConfigRejectsMissingSecretAndBadDriver(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := LoadConfig("")
	require.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = LoadConfig("")
	require.ErrorContains(t, err, "DB_DRIVER")
}

func TestRenderLockOutlivesRender(t *testing.T) {
	cfg := Config{Render: RenderConfig{Timeout: 4 * time.Minute, PersistTimeout: 2 * time.Minute, LockTTL: 5 * time.Minute}}
	require.Equal(t, 6*time.Minute, renderLockTTL(cfg))
	cfg.Render.LockTTL = 10 * time.Minute
	require.Equal(t, 10*time.Minute, renderLockTTL(cfg))
}

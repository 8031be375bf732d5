package commands

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cosmonauts/whalewatching/internal/ratelimit"
	"github.com/cosmonauts/whalewatching/pkg/config"
	"github.com/cosmonauts/whalewatching/pkg/lcd"
)

type globalFlags struct {
	configPath string
	lcdURL     string
	debug      bool
}

// NewRootCommand builds the whalewatching command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "whalewatching",
		Short: "Weighted raffle leaderboard for Stargaze cosmonaut holders",
		Long: `whalewatching resolves the owner of every token in the cosmonaut collection
and four boosting collections through the Stargaze LCD, weights each cosmonaut
by its holder's secondary holdings and writes a ranked leaderboard.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", getEnv("WHALEWATCHING_CONFIG", ""), "YAML config file (built-in defaults when empty)")
	root.PersistentFlags().StringVar(&g.lcdURL, "lcd", getEnv("WHALEWATCHING_LCD_URL", ""), "Stargaze LCD base URL (overrides lcd_url)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", getEnv("WHALEWATCHING_DEBUG", "") != "", "Development logging at debug level")

	root.AddCommand(
		newRunCommand(g),
		newHoldersCommand(g),
		newConfigCommand(g),
	)
	return root
}

func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.lcdURL != "" {
		cfg.LCDURL = g.lcdURL
	}
	return cfg, nil
}

func (g *globalFlags) logger() (*zap.Logger, error) {
	if g.debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newClient wires the LCD client with pacing and retries from cfg. The returned
// limiter, when not nil, must be closed by the caller.
func newClient(cfg *config.Config, log *zap.Logger) (*lcd.Client, *ratelimit.Limiter) {
	opts := []lcd.Option{
		lcd.WithMaxRetries(cfg.Resolve.MaxRetries),
		lcd.WithLogger(log.Named("lcd")),
	}
	var lim *ratelimit.Limiter
	if cfg.Resolve.RatePerSec > 0 {
		lim = ratelimit.New(cfg.Resolve.RatePerSec, cfg.Resolve.Concurrency)
		opts = append(opts, lcd.WithLimiter(lim))
	}
	return lcd.NewClient(cfg.LCDURL, &http.Client{Timeout: cfg.HTTPTimeout}, opts...), lim
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

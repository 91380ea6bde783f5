package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tempoguard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars(t)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Cluster.Transport, convey.ShouldEqual, "none")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("TEMPOGUARD_ADDR", ":8080")
			t.Setenv("TEMPOGUARD_PARTITIONS", "16")
			t.Setenv("TEMPOGUARD_CLUSTER__TRANSPORT", "memory")
			t.Setenv("TEMPOGUARD_CLUSTER__RECONCILE_INTERVAL", "5s")
			t.Setenv("TEMPOGUARD_CHECKS__INTERVAL__WEIGHT", "7.5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Partitions, convey.ShouldEqual, 16)
				convey.So(cfg.Cluster.Transport, convey.ShouldEqual, "memory")
				convey.So(cfg.Cluster.ReconcileInterval, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.Checks.Interval.Weight, convey.ShouldEqual, 7.5)
			})

			convey.Convey("Then untouched nested fields keep their defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Checks.Interval.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Checks.Interval.GracePeriodSamples, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with a YAML file and env on top", func() {
			clearConfigEnvVars(t)
			path := writeConfigFile(t, `
addr: ":9090"
ledger:
  decay_function: exponential
checks:
  reaction:
    params:
      floor_ms: 60
cluster:
  transport: redis
  redis_url: "redis://cache:6379/1"
`)
			t.Setenv("TEMPOGUARD_CONFIG", path)
			t.Setenv("TEMPOGUARD_ADDR", ":8081")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.Ledger.DecayFunction, convey.ShouldEqual, "exponential")
				convey.So(cfg.Cluster.RedisURL, convey.ShouldEqual, "redis://cache:6379/1")
				convey.So(cfg.Checks.Reaction.Param("floor_ms", 0), convey.ShouldEqual, 60)
			})

			convey.Convey("Then params not named in the file keep their defaults", func() {
				convey.So(cfg.Checks.Reaction.Param("max_window_ms", 0), convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When the file carries unsorted thresholds", func() {
			clearConfigEnvVars(t)
			path := writeConfigFile(t, `
checks:
  interval:
    escalation_thresholds: [30, 10, 20]
`)
			t.Setenv("TEMPOGUARD_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails fast with an invalid config error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			clearConfigEnvVars(t)
			t.Setenv("TEMPOGUARD_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			clearConfigEnvVars(t)
			t.Setenv("TEMPOGUARD_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			clearConfigEnvVars(t)
			t.Setenv("TEMPOGUARD_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] != '=' {
				continue
			}
			if key := kv[:i]; len(key) > len(config.EnvPrefix) && key[:len(config.EnvPrefix)] == config.EnvPrefix {
				t.Setenv(key, "")
				_ = os.Unsetenv(key)
			}
			break
		}
	}
}

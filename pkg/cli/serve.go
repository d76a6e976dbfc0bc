package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/whatcdk/pkg/cli/config"
	controller "github.com/m-mizutani/whatcdk/pkg/controller/http"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
	"github.com/m-mizutani/whatcdk/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		githubCfg   config.GitHub
		registryCfg config.Registry
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, registryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting whatcdk server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("github", githubCfg),
			)

			fetcher, err := githubCfg.NewFetcher()
			if err != nil {
				return goerr.Wrap(err, "failed to create release fetcher")
			}

			resolverUC, err := registryCfg.NewResolver(fetcher)
			if err != nil {
				return goerr.Wrap(err, "failed to create resolver")
			}

			server, err := controller.NewServer(
				ctx,
				resolverUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithResolveTimeout(registryCfg.ResolveTimeout),
				controller.WithMaxAge(serverCfg.MaxAge),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			if serverCfg.Warmup {
				async.Dispatch(ctx, "warmup", warmup(resolverUC, registryCfg.ResolveTimeout))
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}

// warmup resolves all products once so the first request hits a filled cache.
// A zero timeout leaves the resolution unbounded.
func warmup(resolverUC interfaces.ResolverUseCase, timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		result, err := resolverUC.ResolveAll(ctx)
		if err != nil {
			return goerr.Wrap(err, "failed to warm up release cache")
		}
		ctxlog.From(ctx).Info("Release cache warmed up", slog.Int("resolved", len(result.Entries)))
		return nil
	}
}

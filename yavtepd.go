package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint
	"os"
	"os/signal"
	"syscall"

	"github.com/projecteru2/core/log"
	coretypes "github.com/projecteru2/core/types"
	"github.com/urfave/cli/v2"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/internal/agent"
	"github.com/projecteru2/yavtep/internal/metrics"
	"github.com/projecteru2/yavtep/internal/plugin"
	"github.com/projecteru2/yavtep/internal/sched"
	"github.com/projecteru2/yavtep/pkg/store"
	"github.com/projecteru2/yavtep/ver"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println(ver.Version())
	}

	app := &cli.App{
		Name:    "yavtepd",
		Usage:   "hardware VTEP control daemon",
		Version: "v",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "config",
				Usage: "config files",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "agent",
				Usage:  "run the L2 gateway agent",
				Action: runAgent,
			},
			{
				Name:   "plugin",
				Usage:  "run the control-plane service",
				Action: runPlugin,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		metrics.IncrError()
		os.Exit(1)
	}
}

func runAgent(c *cli.Context) error {
	ctx, cancel, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer store.Close() //nolint

	mgr, err := agent.New()
	if err != nil {
		return err
	}

	go prof(configs.Conf.ProfHTTPPort)

	return mgr.Run(ctx)
}

func runPlugin(c *cli.Context) error {
	ctx, cancel, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer store.Close() //nolint

	resolver := plugin.NewCachedResolver(
		plugin.StoreEndpointResolver{},
		configs.Conf.Plugin.EndpointCacheTTL.Duration(),
	)
	p := plugin.New(plugin.NopNotifier{}, plugin.StoreTenantLookup{}, resolver)

	scheduler := sched.New(p)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	go prof(configs.Conf.ProfHTTPPort)

	return p.Serve(ctx)
}

func setup(c *cli.Context) (context.Context, context.CancelFunc, error) {
	if err := configs.Conf.Load(c.StringSlice("config")); err != nil {
		return nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	if err := log.SetupLog(ctx, &coretypes.ServerLogConfig{
		Level:    configs.Conf.LogLevel,
		Filename: configs.Conf.LogFile,
	}, configs.Conf.LogSentry); err != nil {
		cancel()
		return nil, nil, err
	}

	if err := store.Setup("etcd"); err != nil {
		cancel()
		return nil, nil, err
	}

	metrics.Setup(configs.Conf.Hostname)

	if dump, err := configs.Conf.Dump(); err == nil {
		log.WithFunc("main").Infof(ctx, "%s", dump)
	}

	return ctx, cancel, nil
}

func prof(port int) {
	http.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", port)} //nolint:gosec
	server.ListenAndServe()                                //nolint
}

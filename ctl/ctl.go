package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/ctl/agent"
	"github.com/projecteru2/yavtep/ctl/pending"
	"github.com/projecteru2/yavtep/pkg/store"
	"github.com/projecteru2/yavtep/ver"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println(ver.Version())
	}

	app := &cli.App{
		Name:  "yavtep-ctl",
		Usage: "yavtep admin tool",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "config",
				Usage:    "config files",
				Required: true,
			},
		},
		Before: func(c *cli.Context) error {
			if err := configs.Conf.Load(c.StringSlice("config")); err != nil {
				return err
			}
			return store.Setup("etcd")
		},
		After: func(*cli.Context) error {
			return store.Close()
		},
		Commands: []*cli.Command{
			pending.Command(),
			agent.Command(),
		},
		Version: "v",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

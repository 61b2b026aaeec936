package pending

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/projecteru2/yavtep/internal/models"
)

// Command .
func Command() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "inspect and purge queued OVSDB writes",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "list queued writes of one ovsdb identifier",
				ArgsUsage: "<ovsdb_identifier>",
				Action:    list,
			},
			{
				Name:      "purge",
				Usage:     "drop the whole queue of one ovsdb identifier",
				ArgsUsage: "<ovsdb_identifier>",
				Action:    purge,
			},
		},
	}
}

func list(c *cli.Context) error {
	ovsdbID := c.Args().First()
	if ovsdbID == "" {
		return cli.Exit("ovsdb_identifier required", 1)
	}

	rows, err := models.ListPendingUcastMacsRemote(ovsdbID)
	if err != nil {
		return err
	}

	for _, row := range rows {
		fmt.Printf("%s  %-6s  ls=%s  mac=%s  dst_ip=%s\n",
			time.Unix(0, row.Timestamp).Format(time.RFC3339),
			row.Op, row.LogicalSwitchUUID, row.MAC, row.DstIP)
	}
	fmt.Printf("%d pending\n", len(rows))

	return nil
}

func purge(c *cli.Context) error {
	ovsdbID := c.Args().First()
	if ovsdbID == "" {
		return cli.Exit("ovsdb_identifier required", 1)
	}

	rows, err := models.ListPendingUcastMacsRemote(ovsdbID)
	if err != nil {
		return err
	}

	if err := models.PurgePendingUcastMacsRemote(ovsdbID); err != nil {
		return err
	}

	fmt.Printf("purged %d pending ops of %s\n", len(rows), ovsdbID)

	return nil
}

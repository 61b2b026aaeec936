package agent

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/internal/models"
)

// Command .
func Command() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "inspect the agent registry",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list registered agents with role and liveness",
				Action: list,
			},
		},
	}
}

func list(c *cli.Context) error {
	agents, err := models.ListAgents()
	if err != nil {
		return err
	}

	downTime := configs.Conf.Plugin.AgentDownTime.Duration()
	for _, agent := range agents {
		state := "dead"
		if agent.Alive(downTime) {
			state = "alive"
		}
		role := agent.Role
		if role == "" {
			role = "-"
		}
		fmt.Printf("%-20s  %-8s  %-9s  started=%s  heartbeat=%s\n",
			agent.Hostname, role, state,
			time.Unix(0, agent.StartedAt).Format(time.RFC3339),
			time.Unix(0, agent.HeartbeatAt).Format(time.RFC3339))
	}

	return nil
}

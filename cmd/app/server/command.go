package server

import (
	"os"

	"github.com/urfave/cli/v2"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:    "start",
		Aliases: []string{"serve"},
		Usage:   "start the HTTP gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen address, overrides PRISMA_SERVICE_ADDRESS",
			},
		},
		Action: func(c *cli.Context) error {
			if addr := c.String("address"); addr != "" {
				if err := os.Setenv("PRISMA_SERVICE_ADDRESS", addr); err != nil {
					return err
				}
			}
			Run()
			return nil
		},
	}
}

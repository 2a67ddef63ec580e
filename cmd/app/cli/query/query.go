// Package query exposes the module operations on the command line. Results are written to
// stdout as JSON.
package query

import (
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"
	"gopkg.in/guregu/null.v3"

	cliapp "github.com/clovid/prisma-sub000/cmd/app/cli"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/repo"
	"github.com/clovid/prisma-sub000/internal/service"
)

var (
	moduleFlag = &cli.StringFlag{Name: "module", Aliases: []string{"m"}, Usage: "configured module name", Required: true}
	taskFlag   = &cli.StringFlag{Name: "task", Aliases: []string{"t"}, Usage: "task id, several ids may be comma joined", Required: true}
	cohortFlag = &cli.StringFlag{Name: "cohort", Usage: "comma separated cohort user ids"}
	spanFlag   = &cli.StringSliceFlag{Name: "timespan", Usage: "start,end in milliseconds, may be repeated"}
	userFlag   = &cli.StringFlag{Name: "user", Usage: "name recorded in privacy audits", EnvVars: []string{"USER"}, Value: "cli"}
)

func AggregateCommand() *cli.Command {
	return &cli.Command{
		Name:  "aggregate",
		Usage: "print the summarized datasets of one or more tasks",
		Flags: []cli.Flag{moduleFlag, taskFlag, cohortFlag, spanFlag, userFlag},
		Action: func(c *cli.Context) error {
			var modules *service.Module
			stop, err := cliapp.Start(c.Context, &modules)
			if err != nil {
				return err
			}
			defer stop()

			filter := model.NewFilter(model.ParseCohort(c.String(cohortFlag.Name)), c.StringSlice(spanFlag.Name))
			tree, err := modules.SummarizedDatasets(c.Context, identity(c), c.String(moduleFlag.Name), taskIDs(c.String(taskFlag.Name)), filter)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, tree)
		},
	}
}

func TabsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tabs",
		Usage: "print the tabs a task supports",
		Flags: []cli.Flag{moduleFlag, taskFlag},
		Action: func(c *cli.Context) error {
			var modules *service.Module
			stop, err := cliapp.Start(c.Context, &modules)
			if err != nil {
				return err
			}
			defer stop()

			tabs, err := modules.SupportedTabs(c.Context, c.String(moduleFlag.Name), model.ID(c.String(taskFlag.Name)))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, tabs)
		},
	}
}

func AuditsCommand() *cli.Command {
	return &cli.Command{
		Name:  "audits",
		Usage: "print the most recent privacy audit entries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 50},
		},
		Action: func(c *cli.Context) error {
			var audits *repo.PrivacyAudit
			stop, err := cliapp.Start(c.Context, &audits)
			if err != nil {
				return err
			}
			defer stop()

			if !audits.Enabled() {
				return cli.Exit("privacy audits are not persisted: no database configured", 1)
			}
			entries, err := audits.GetRecent(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, entries)
		},
	}
}

func identity(c *cli.Context) model.Identity {
	return model.Identity{UserName: null.NewString(c.String(userFlag.Name), c.String(userFlag.Name) != "")}
}

func taskIDs(raw string) []model.ID {
	var ids []model.ID
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, model.ID(part))
		}
	}
	return ids
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

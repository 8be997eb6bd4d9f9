package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/procore-go/internal/procore"
)

var errCompanyRequired = errors.New("--company is required")

func newProjectsCmd() *cobra.Command {
	var companyID int64

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the projects of a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProjects(cmd, companyID)
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 0, "company ID (see 'procore-go companies')")

	return cmd
}

type projectJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CompanyID int64  `json:"company_id"`
	Active    bool   `json:"active"`
}

func runProjects(cmd *cobra.Command, companyID int64) error {
	if companyID <= 0 {
		return errCompanyRequired
	}

	cc := mustCLIContext(cmd.Context())

	sess, err := newSession(cmd.Context(), cc)
	if err != nil {
		return err
	}

	projects, err := sess.Client.ForCompany(companyID).Projects(cmd.Context(), companyID)
	if err != nil {
		return err
	}

	return printProjects(cc, projects)
}

func printProjects(cc *CLIContext, projects []procore.Project) error {
	if cc.Flags.JSON {
		out := make([]projectJSON, 0, len(projects))
		for _, p := range projects {
			out = append(out, projectJSON{ID: p.ID, Name: p.Name, CompanyID: p.CompanyID, Active: p.Active})
		}

		return printJSON(cc.Stdout, out)
	}

	if len(projects) == 0 {
		cc.Statusf("No projects in this company.\n")
		return nil
	}

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, yesNo(p.Active)})
	}

	printTable(cc.Stdout, []string{"ID", "NAME", "ACTIVE"}, rows)

	return nil
}

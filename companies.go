package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/procore-go/internal/procore"
)

func newCompaniesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List the companies the authorized user can access",
		Args:  cobra.NoArgs,
		RunE:  runCompanies,
	}
}

type companyJSON struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func runCompanies(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	sess, err := newSession(cmd.Context(), cc)
	if err != nil {
		return err
	}

	companies, err := sess.Client.Companies(cmd.Context())
	if err != nil {
		return err
	}

	return printCompanies(cc, companies)
}

func printCompanies(cc *CLIContext, companies []procore.Company) error {
	if cc.Flags.JSON {
		out := make([]companyJSON, 0, len(companies))
		for _, c := range companies {
			out = append(out, companyJSON{ID: c.ID, Name: c.Name, Active: c.Active})
		}

		return printJSON(cc.Stdout, out)
	}

	if len(companies) == 0 {
		cc.Statusf("No companies available to this user.\n")
		return nil
	}

	rows := make([][]string, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Name, yesNo(c.Active)})
	}

	printTable(cc.Stdout, []string{"ID", "NAME", "ACTIVE"}, rows)

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

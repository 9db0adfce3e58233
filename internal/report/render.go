package report

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

const dateLayout = "2006-01-02"

// RenderText formats a statement as a plain-text report suitable for
// logs or terminal output.
func RenderText(s *Statement) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "ACCOUNT STATEMENT\n")
	fmt.Fprintf(&sb, "Customer: %s\n", s.CustomerName)
	fmt.Fprintf(&sb, "Period:   %s to %s\n", s.From.Format(dateLayout), s.To.Format(dateLayout))
	fmt.Fprintf(&sb, "Issued:   %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	for _, account := range s.Accounts {
		fmt.Fprintf(&sb, "Account %s (%s)\n", account.Number, account.Type)
		fmt.Fprintf(&sb, "  Opening balance: %s\n", account.OpeningBalance.StringFixed(2))

		if len(account.Lines) > 0 {
			w := tabwriter.NewWriter(&sb, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  DATE\tKIND\tREFERENCE\tAMOUNT\tBALANCE")
			for _, line := range account.Lines {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
					line.Timestamp.Format("2006-01-02 15:04"),
					line.Kind,
					line.Reference,
					line.Value.StringFixed(2),
					line.Balance.StringFixed(2))
			}
			w.Flush()
		} else {
			fmt.Fprintln(&sb, "  (no movements in period)")
		}
		fmt.Fprintf(&sb, "  Closing balance: %s\n\n", account.ClosingBalance.StringFixed(2))
	}

	fmt.Fprintf(&sb, "Total credits: %s\n", s.TotalCredits.StringFixed(2))
	fmt.Fprintf(&sb, "Total debits:  %s\n", s.TotalDebits.StringFixed(2))
	return sb.String()
}

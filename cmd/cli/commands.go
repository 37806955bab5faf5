package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fintrack/cmd/cli/client"
	"github.com/fintrack/internal/models"
	"github.com/spf13/cobra"
)

var apiClient *client.APIClient

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid ID: %v", err)
	}
	return uint(id), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func printSchedules(schedules []models.ScheduledTransaction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
	fmt.Fprintln(w, "ID\tNAME\tAMOUNT\tRECURRENCE\tNEXT DUE\tMODE\tACTIVE\t")
	for _, st := range schedules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%v\t\n",
			st.ID, st.Name, st.Amount.StringFixed(2), st.Rule.Type,
			formatDate(st.NextDueDate), st.SchedulingMode, st.IsActive)
	}
	w.Flush()
}

func addScheduledCommands(rootCmd *cobra.Command) {
	var scheduledCmd = &cobra.Command{
		Use:   "scheduled",
		Short: "Manage scheduled transactions",
	}

	var activeOnly bool
	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List scheduled transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := apiClient.ListScheduled(activeOnly)
			if err != nil {
				return err
			}
			printSchedules(schedules)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&activeOnly, "active", false, "Show only active schedules")

	var dueCmd = &cobra.Command{
		Use:   "due",
		Short: "List schedules due today or earlier",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := apiClient.ListDue()
			if err != nil {
				return err
			}
			printSchedules(schedules)
			return nil
		},
	}

	var overdueCmd = &cobra.Command{
		Use:   "overdue",
		Short: "List schedules past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := apiClient.ListOverdue()
			if err != nil {
				return err
			}
			printSchedules(schedules)
			return nil
		},
	}

	var days int
	var upcomingCmd = &cobra.Command{
		Use:   "upcoming",
		Short: "List schedules due within the next days",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := apiClient.ListUpcoming(days)
			if err != nil {
				return err
			}
			printSchedules(schedules)
			return nil
		},
	}
	upcomingCmd.Flags().IntVar(&days, "days", 30, "Look-ahead window in days")

	var createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a scheduled transaction from JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st models.ScheduledTransaction
			if err := json.NewDecoder(os.Stdin).Decode(&st); err != nil {
				return fmt.Errorf("invalid schedule JSON: %v", err)
			}

			if err := apiClient.CreateScheduled(&st); err != nil {
				return err
			}

			fmt.Println("Scheduled transaction created")
			return nil
		},
	}

	var deleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a scheduled transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := apiClient.DeleteScheduled(id); err != nil {
				return err
			}

			fmt.Println("Scheduled transaction deleted")
			return nil
		},
	}

	var processDate string
	var processCmd = &cobra.Command{
		Use:   "process [id]",
		Short: "Post the current occurrence of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			result, err := apiClient.ProcessScheduled(id, processDate)
			if err != nil {
				return err
			}

			txn := result.Transaction
			fmt.Printf("Posted transaction %d: %s %s on %s\n",
				txn.ID, txn.Payee, txn.Amount.StringFixed(2), txn.Date.Format("2006-01-02"))
			return nil
		},
	}
	processCmd.Flags().StringVar(&processDate, "date", "", "Occurrence date (YYYY-MM-DD, defaults to the next due date)")

	var processAllCmd = &cobra.Command{
		Use:   "process-all",
		Short: "Process everything that is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := apiClient.ProcessAllDue()
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Println("Nothing due")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("[%s] schedule %d: %s\n", ev.Kind, ev.ScheduledID, ev.Message)
			}
			return nil
		},
	}

	var skipCmd = &cobra.Command{
		Use:   "skip [id] [date]",
		Short: "Skip an occurrence (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := apiClient.SkipOccurrence(id, args[1]); err != nil {
				return err
			}

			fmt.Printf("Skipped %s\n", args[1])
			return nil
		},
	}

	var unskipCmd = &cobra.Command{
		Use:   "unskip [id] [date]",
		Short: "Restore a skipped occurrence (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := apiClient.UnskipOccurrence(id, args[1]); err != nil {
				return err
			}

			fmt.Printf("Restored %s\n", args[1])
			return nil
		},
	}

	var pauseCmd = &cobra.Command{
		Use:   "pause [id]",
		Short: "Pause a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := apiClient.PauseScheduled(id); err != nil {
				return err
			}

			fmt.Println("Schedule paused")
			return nil
		},
	}

	var resumeCmd = &cobra.Command{
		Use:   "resume [id]",
		Short: "Resume a paused schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := apiClient.ResumeScheduled(id); err != nil {
				return err
			}

			fmt.Println("Schedule resumed")
			return nil
		},
	}

	scheduledCmd.AddCommand(listCmd)
	scheduledCmd.AddCommand(dueCmd)
	scheduledCmd.AddCommand(overdueCmd)
	scheduledCmd.AddCommand(upcomingCmd)
	scheduledCmd.AddCommand(createCmd)
	scheduledCmd.AddCommand(deleteCmd)
	scheduledCmd.AddCommand(processCmd)
	scheduledCmd.AddCommand(processAllCmd)
	scheduledCmd.AddCommand(skipCmd)
	scheduledCmd.AddCommand(unskipCmd)
	scheduledCmd.AddCommand(pauseCmd)
	scheduledCmd.AddCommand(resumeCmd)

	rootCmd.AddCommand(scheduledCmd)
}

func addNotificationCommands(rootCmd *cobra.Command) {
	var notificationsCmd = &cobra.Command{
		Use:   "notifications",
		Short: "View and manage notifications",
	}

	var activeOnly bool
	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := apiClient.ListNotifications(activeOnly)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tKIND\tDATE\tMESSAGE\tREAD\t")
			for _, n := range notes {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\t\n",
					n.ID, n.Kind, n.ScheduledFor.Format("2006-01-02"), n.Message, n.IsRead)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().BoolVar(&activeOnly, "active", false, "Show only active notifications")

	var readCmd = &cobra.Command{
		Use:   "read [id]",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return apiClient.MarkNotificationRead(id)
		},
	}

	var dismissCmd = &cobra.Command{
		Use:   "dismiss [id]",
		Short: "Dismiss a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return apiClient.DismissNotification(id)
		},
	}

	var hours int
	var snoozeCmd = &cobra.Command{
		Use:   "snooze [id]",
		Short: "Snooze a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient.SnoozeNotification(id, hours); err != nil {
				return err
			}
			fmt.Printf("Snoozed for %d hours\n", hours)
			return nil
		},
	}
	snoozeCmd.Flags().IntVar(&hours, "hours", 24, "Snooze duration in hours")

	notificationsCmd.AddCommand(listCmd)
	notificationsCmd.AddCommand(readCmd)
	notificationsCmd.AddCommand(dismissCmd)
	notificationsCmd.AddCommand(snoozeCmd)

	rootCmd.AddCommand(notificationsCmd)
}

func addReportCommands(rootCmd *cobra.Command) {
	var reportType, start, end, emailTo string
	var reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Generate a financial summary report",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiClient.GenerateReport(reportType, start, end, emailTo)
			if err != nil {
				return fmt.Errorf("failed to generate report: %v", err)
			}

			if emailTo != "" {
				fmt.Printf("Report sent to %s\n", emailTo)
				return nil
			}
			// Without a recipient the server returns the rendered HTML.
			os.Stdout.Write(resp)
			return nil
		},
	}
	reportCmd.Flags().StringVar(&reportType, "type", "monthly", "Report type (weekly/monthly)")
	reportCmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&emailTo, "email", "", "Email address to send the report to")
	reportCmd.MarkFlagRequired("start")
	reportCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(reportCmd)
}

func addLedgerCommands(rootCmd *cobra.Command) {
	var accountsCmd = &cobra.Command{
		Use:   "accounts",
		Short: "List accounts and balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := apiClient.ListAccounts()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tBALANCE\tCURRENCY\t")
			for _, a := range accounts {
				balance, err := apiClient.AccountBalance(a.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n",
					a.ID, a.Name, a.Type, balance.StringFixed(2), a.Currency)
			}
			w.Flush()
			return nil
		},
	}

	var accountID uint
	var limit int
	var transactionsCmd = &cobra.Command{
		Use:   "transactions",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			txns, err := apiClient.ListTransactions(accountID, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tDATE\tPAYEE\tAMOUNT\tTYPE\tSTATUS\t")
			for _, t := range txns {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
					t.ID, t.Date.Format("2006-01-02"), t.Payee,
					t.Amount.StringFixed(2), t.Type, t.Status)
			}
			w.Flush()
			return nil
		},
	}
	transactionsCmd.Flags().UintVar(&accountID, "account", 0, "Filter by account ID")
	transactionsCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of transactions")

	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(transactionsCmd)
}

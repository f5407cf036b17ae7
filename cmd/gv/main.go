package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"grievline/internal/app"
	"grievline/internal/config"
	"grievline/internal/db"
	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/repo"
	"grievline/internal/review"
	"grievline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gv",
	Short: "Grievline CLI",
	Long: `Grievline tracks municipal grievance reports through a guarded lifecycle.
Citizens file reports, admins classify and route them, officers work them,
and appeals/escalations govern disputes. Every status change is validated
against one transition table, recorded in per-report history, and audited.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GRIEVLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier")
	rootCmd.PersistentFlags().String("role", "admin", "actor role (citizen, officer, admin, supervisor)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(appealCmd())
	rootCmd.AddCommand(escalationCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(serveCmd())
}

func cliActor() lifecycle.Actor {
	return lifecycle.Actor{
		ID:   viper.GetString("actor-id"),
		Role: domain.Role(viper.GetString("role")),
	}
}

func initCmd() *cobra.Command {
	var municipality string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config %s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(municipality)), 0o644); err != nil {
				return err
			}
			conn, _, err := app.Open(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Printf("Initialized workspace %s (config %s, store %s)\n", workspace, path, db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().StringVar(&municipality, "municipality", "default", "municipality id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				return printJSON(e.Config)
			})
		},
	})
	var importFile string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a config file into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.FromFile(importFile)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(importFile)
			if err != nil {
				return err
			}
			if err := os.WriteFile(config.Path(viper.GetString("workspace")), data, 0o644); err != nil {
				return err
			}
			fmt.Printf("imported config for municipality %s\n", c.Municipality.ID)
			return nil
		},
	}
	importCmd.Flags().StringVar(&importFile, "file", "", "path to config yaml")
	_ = importCmd.MarkFlagRequired("file")
	cfg.AddCommand(importCmd)
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate grievline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			fmt.Printf("config ok: municipality=%s departments=%d\n", c.Municipality.ID, len(c.Departments))
			return nil
		},
	})
	return cfg
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Manage reports"}
	rep.AddCommand(reportCreateCmd())
	rep.AddCommand(reportListCmd())
	rep.AddCommand(reportShowCmd())
	rep.AddCommand(reportStatusCmd())
	rep.AddCommand(reportClassifyCmd())
	rep.AddCommand(reportAssignDeptCmd())
	rep.AddCommand(reportAssignOfficerCmd())
	rep.AddCommand(reportReassignCmd())
	rep.AddCommand(reportSeverityCmd())
	rep.AddCommand(reportHistoryCmd())
	rep.AddCommand(reportBulkCmd())
	return rep
}

func reportCreateCmd() *cobra.Command {
	var title, desc, category, severity string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				rep, err := e.CreateReport(ctx, lifecycle.CreateReportOptions{
					Title:       title,
					Description: desc,
					Category:    category,
					Severity:    domain.Severity(severity),
					Actor:       cliActor(),
				})
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "report title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&severity, "severity", "medium", "severity (low, medium, high, critical)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func reportListCmd() *cobra.Command {
	var f repo.ReportFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				reports, err := e.Repo.ListReports(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Number", "Title", "Status", "Severity", "Department"})
				for _, r := range reports {
					dept := ""
					if r.DepartmentID != nil {
						dept = *r.DepartmentID
					}
					tw.AppendRow(table.Row{r.ID, r.Number, r.Title, r.Status, r.Severity, dept})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.DepartmentID, "department", "", "department filter")
	cmd.Flags().StringVar(&f.SubmitterID, "submitter", "", "submitter filter")
	cmd.Flags().StringVar(&f.Severity, "severity", "", "severity filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func reportShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				rep, err := e.Repo.GetReport(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	return cmd
}

func reportStatusCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "status <id> <new-status>",
		Short: "Apply a status transition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				rep, err := e.ApplyTransition(ctx, lifecycle.TransitionOptions{
					ReportID: id,
					Target:   domain.Status(args[1]),
					Actor:    cliActor(),
					Notes:    notes,
				})
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "transition notes")
	return cmd
}

func reportClassifyCmd() *cobra.Command {
	var category, severity, notes string
	cmd := &cobra.Command{
		Use:   "classify <id>",
		Short: "Classify a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				rep, err := e.Classify(ctx, lifecycle.ClassifyOptions{
					ReportID: id,
					Category: category,
					Severity: domain.Severity(severity),
					Actor:    cliActor(),
					Notes:    notes,
				})
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&severity, "severity", "medium", "severity")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func reportAssignDeptCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "assign-department <id> <department-id>",
		Short: "Route a report to a department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				rep, err := e.AssignDepartment(ctx, lifecycle.AssignDepartmentOptions{
					ReportID:     id,
					DepartmentID: args[1],
					Actor:        cliActor(),
					Notes:        notes,
				})
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func reportAssignOfficerCmd() *cobra.Command {
	var priority int
	var notes string
	cmd := &cobra.Command{
		Use:   "assign-officer <id> <officer-id>",
		Short: "Assign an officer task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				var prio *int
				if cmd.Flags().Changed("priority") {
					prio = &priority
				}
				rep, err := e.AssignOfficer(ctx, lifecycle.AssignOfficerOptions{
					ReportID:  id,
					OfficerID: args[1],
					Priority:  prio,
					Actor:     cliActor(),
					Notes:     notes,
				})
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	cmd.Flags().IntVar(&priority, "priority", 0, "task priority")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func reportReassignCmd() *cobra.Command {
	var officer, department, notes string
	cmd := &cobra.Command{
		Use:   "reassign <id>",
		Short: "Reassign the active task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				return e.Reassign(ctx, lifecycle.ReassignOptions{
					ReportID:     id,
					OfficerID:    optionalString(officer),
					DepartmentID: optionalString(department),
					Actor:        cliActor(),
					Notes:        notes,
				})
			})
		},
	}
	cmd.Flags().StringVar(&officer, "officer", "", "new officer id")
	cmd.Flags().StringVar(&department, "department", "", "new department id")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func reportSeverityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "severity <id> <severity>",
		Short: "Change report severity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				return e.SetSeverity(ctx, lifecycle.SetSeverityOptions{
					ReportID: id,
					Severity: domain.Severity(args[1]),
					Actor:    cliActor(),
				})
			})
		},
	}
	return cmd
}

func reportHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				items, err := e.Repo.ListHistory(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "From", "To", "Actor", "Notes"})
				for _, h := range items {
					tw.AppendRow(table.Row{h.CreatedAt, h.OldStatus, h.NewStatus, h.ActorID, h.Notes})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportBulkCmd() *cobra.Command {
	bulk := &cobra.Command{Use: "bulk", Short: "Bulk report operations"}

	var statusIDs, statusTarget, statusNotes string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Bulk status transition",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDList(statusIDs)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				res, err := e.BulkStatus(ctx, ids, domain.Status(statusTarget), cliActor(), statusNotes)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	statusCmd.Flags().StringVar(&statusIDs, "ids", "", "comma-separated report ids")
	statusCmd.Flags().StringVar(&statusTarget, "new-status", "", "target status")
	statusCmd.Flags().StringVar(&statusNotes, "notes", "", "notes")
	_ = statusCmd.MarkFlagRequired("ids")
	_ = statusCmd.MarkFlagRequired("new-status")
	bulk.AddCommand(statusCmd)

	var deptIDs, deptTarget string
	deptCmd := &cobra.Command{
		Use:   "department",
		Short: "Bulk department routing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDList(deptIDs)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				res, err := e.BulkAssignDepartment(ctx, ids, deptTarget, cliActor())
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	deptCmd.Flags().StringVar(&deptIDs, "ids", "", "comma-separated report ids")
	deptCmd.Flags().StringVar(&deptTarget, "department", "", "department id")
	_ = deptCmd.MarkFlagRequired("ids")
	_ = deptCmd.MarkFlagRequired("department")
	bulk.AddCommand(deptCmd)

	var offIDs, offTarget string
	offCmd := &cobra.Command{
		Use:   "officer",
		Short: "Bulk officer assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDList(offIDs)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				res, err := e.BulkAssignOfficer(ctx, ids, offTarget, nil, cliActor())
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	offCmd.Flags().StringVar(&offIDs, "ids", "", "comma-separated report ids")
	offCmd.Flags().StringVar(&offTarget, "officer", "", "officer id")
	_ = offCmd.MarkFlagRequired("ids")
	_ = offCmd.MarkFlagRequired("officer")
	bulk.AddCommand(offCmd)

	var sevIDs, sevTarget string
	sevCmd := &cobra.Command{
		Use:   "severity",
		Short: "Bulk severity change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDList(sevIDs)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				res, err := e.BulkSetSeverity(ctx, ids, domain.Severity(sevTarget), cliActor())
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	sevCmd.Flags().StringVar(&sevIDs, "ids", "", "comma-separated report ids")
	sevCmd.Flags().StringVar(&sevTarget, "severity", "", "severity")
	_ = sevCmd.MarkFlagRequired("ids")
	_ = sevCmd.MarkFlagRequired("severity")
	bulk.AddCommand(sevCmd)

	return bulk
}

func appealCmd() *cobra.Command {
	ap := &cobra.Command{Use: "appeal", Short: "Manage appeals"}

	var reportID int64
	var appealType, reason, evidence, action string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit an appeal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				a, err := svc.SubmitAppeal(ctx, review.SubmitAppealOptions{
					ReportID:        reportID,
					Type:            domain.AppealType(appealType),
					Reason:          reason,
					Evidence:        evidence,
					RequestedAction: action,
					Actor:           cliActor(),
				})
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	submit.Flags().Int64Var(&reportID, "report", 0, "report id")
	submit.Flags().StringVar(&appealType, "type", "", "appeal type")
	submit.Flags().StringVar(&reason, "reason", "", "reason")
	submit.Flags().StringVar(&evidence, "evidence", "", "evidence")
	submit.Flags().StringVar(&action, "requested-action", "", "requested action")
	_ = submit.MarkFlagRequired("report")
	_ = submit.MarkFlagRequired("type")
	_ = submit.MarkFlagRequired("reason")
	ap.AddCommand(submit)

	var listStatus string
	list := &cobra.Command{
		Use:   "list",
		Short: "List appeals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				items, err := svc.Engine.Repo.ListAppeals(ctx, listStatus)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	list.Flags().StringVar(&listStatus, "status", "", "status filter")
	ap.AddCommand(list)

	startReview := &cobra.Command{
		Use:   "start-review <id>",
		Short: "Take an appeal under review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				return svc.StartReview(ctx, id, cliActor())
			})
		},
	}
	ap.AddCommand(startReview)

	var decision, reviewNotes, reworkNotes, reOfficer, reDept string
	var rework bool
	reviewCmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve or reject an appeal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if decision != "approved" && decision != "rejected" {
				return fmt.Errorf("--status must be approved or rejected")
			}
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				a, err := svc.ReviewAppeal(ctx, review.ReviewAppealOptions{
					AppealID:       id,
					Approve:        decision == "approved",
					ReviewNotes:    reviewNotes,
					RequiresRework: rework,
					ReworkNotes:    reworkNotes,
					ReassignedTo:   optionalString(reOfficer),
					ReassignedDept: optionalString(reDept),
					Actor:          cliActor(),
				})
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	reviewCmd.Flags().StringVar(&decision, "status", "", "approved or rejected")
	reviewCmd.Flags().StringVar(&reviewNotes, "notes", "", "review notes")
	reviewCmd.Flags().BoolVar(&rework, "rework", false, "send report back to in_progress")
	reviewCmd.Flags().StringVar(&reworkNotes, "rework-notes", "", "rework notes")
	reviewCmd.Flags().StringVar(&reOfficer, "reassign-officer", "", "new officer")
	reviewCmd.Flags().StringVar(&reDept, "reassign-department", "", "new department")
	_ = reviewCmd.MarkFlagRequired("status")
	ap.AddCommand(reviewCmd)

	withdraw := &cobra.Command{
		Use:   "withdraw <id>",
		Short: "Withdraw an appeal (submitter only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				return svc.WithdrawAppeal(ctx, id, cliActor())
			})
		},
	}
	ap.AddCommand(withdraw)

	return ap
}

func escalationCmd() *cobra.Command {
	esc := &cobra.Command{Use: "escalation", Short: "Manage escalations"}

	var reportID int64
	var level, reason string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Escalate a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				e, err := svc.SubmitEscalation(ctx, review.SubmitEscalationOptions{
					ReportID: reportID,
					Level:    domain.EscalationLevel(level),
					Reason:   reason,
					Actor:    cliActor(),
				})
				if err != nil {
					return err
				}
				return printJSON(e)
			})
		},
	}
	submit.Flags().Int64Var(&reportID, "report", 0, "report id")
	submit.Flags().StringVar(&level, "level", "supervisor", "escalation level")
	submit.Flags().StringVar(&reason, "reason", "", "reason")
	_ = submit.MarkFlagRequired("report")
	_ = submit.MarkFlagRequired("reason")
	esc.AddCommand(submit)

	ack := &cobra.Command{
		Use:   "acknowledge <id>",
		Short: "Acknowledge an escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				return svc.AcknowledgeEscalation(ctx, id, cliActor())
			})
		},
	}
	esc.AddCommand(ack)

	var response string
	respond := &cobra.Command{
		Use:   "respond <id>",
		Short: "Record the handler response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				return svc.RespondEscalation(ctx, id, response, cliActor())
			})
		},
	}
	respond.Flags().StringVar(&response, "response", "", "response text")
	_ = respond.MarkFlagRequired("response")
	esc.AddCommand(respond)

	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				return svc.ResolveEscalation(ctx, id, cliActor())
			})
		},
	}
	esc.AddCommand(resolve)

	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "List escalations past their SLA deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReview(cmd.Context(), func(ctx context.Context, svc review.Service) error {
				items, err := svc.OverdueEscalations(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	esc.AddCommand(overdue)

	return esc
}

func auditCmd() *cobra.Command {
	aud := &cobra.Command{Use: "audit", Short: "Audit log"}
	var n int
	var action, outcome, actorFilter, resourceKind, resourceID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				items, err := e.Repo.ListAuditLog(ctx, repo.AuditFilter{
					ActorID:      actorFilter,
					Action:       action,
					Outcome:      outcome,
					ResourceKind: resourceKind,
					ResourceID:   resourceID,
					Limit:        n,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Actor", "Action", "Outcome", "Resource", "Description"})
				for _, it := range items {
					resource := it.ResourceKind
					if it.ResourceID != "" {
						resource += "/" + it.ResourceID
					}
					tw.AppendRow(table.Row{it.TS, it.ActorID, it.Action, it.Outcome, resource, it.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of entries")
	tail.Flags().StringVar(&action, "action", "", "action filter")
	tail.Flags().StringVar(&outcome, "outcome", "", "outcome filter (success, failure)")
	tail.Flags().StringVar(&actorFilter, "actor", "", "actor filter")
	tail.Flags().StringVar(&resourceKind, "resource-kind", "", "resource kind")
	tail.Flags().StringVar(&resourceID, "resource-id", "", "resource id")
	aud.AddCommand(tail)
	return aud
}

func keysCmd() *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Manage API keys"}

	var actorID, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (prints the secret once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				secret := uuid.NewString() + uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				fmt.Printf("id: %s\nactor: %s\nkey: %s\n", key.ID, key.ActorID, secret)
				fmt.Println("store the key now; only its hash is kept")
				return nil
			})
		},
	}
	create.Flags().StringVar(&actorID, "actor", "", "actor id (defaults to --actor-id)")
	create.Flags().StringVar(&name, "name", "", "key name")
	keys.AddCommand(create)

	var listActor string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, listActor)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	list.Flags().StringVar(&listActor, "actor", "", "actor filter")
	keys.AddCommand(list)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	keys.AddCommand(del)

	return keys
}

func actorCmd() *cobra.Command {
	actor := &cobra.Command{Use: "actor", Short: "Manage actors"}
	var role string
	setRole := &cobra.Command{
		Use:   "set-role <actor-id>",
		Short: "Set an actor's role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %s", role)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				return e.Repo.UpsertActor(ctx, args[0], r)
			})
		},
	}
	setRole.Flags().StringVar(&role, "role", "", "role (citizen, officer, admin, supervisor)")
	_ = setRole.MarkFlagRequired("role")
	actor.AddCommand(setRole)
	return actor
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, cfg, err := app.Open(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := lifecycle.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("GRIEVLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("GRIEVLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				Review:   review.NewService(e),
				BasePath: basePath,
				Auth:     authCfg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Grievline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, lifecycle.Engine) error) error {
	conn, cfg, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, lifecycle.New(conn, cfg))
}

func withReview(ctx context.Context, fn func(context.Context, review.Service) error) error {
	return withEngine(ctx, func(ctx context.Context, e lifecycle.Engine) error {
		return fn(ctx, review.NewService(e))
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q", s)
	}
	return id, nil
}

func parseIDList(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := parseID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

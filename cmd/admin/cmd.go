package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/SAP-F-2025/evaluation-service/internal/services"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	services services.ServiceManager
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repair [-dry-run]                                  - diagnose and fix role/profile mismatches")
	fmt.Println("  backfill [-cycle ID] [-dry-run]                    - create missing evaluations for cycle sections")
	fmt.Println("  expire                                             - expire unanswered evaluations of ended cycles")
	fmt.Println("  override -list                                     - list manually overridden users")
	fmt.Println("  override -set -user ID                             - pin a user's role against SSO logins")
	fmt.Println("  override -reset -user ID                           - clear a user's manual override flag")
	fmt.Println("  import-enrollments -file F.xlsx -section ID [-dry-run] - enroll students from a roster")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()

	switch args[1] {
	case "repair":
		cmd := flag.NewFlagSet("repair", flag.ExitOnError)
		dryRun := cmd.Bool("dry-run", false, "Diagnose without fixing")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.repair(ctx, *dryRun)

	case "backfill":
		cmd := flag.NewFlagSet("backfill", flag.ExitOnError)
		cycleID := cmd.Uint("cycle", 0, "Limit the backfill to one cycle")
		dryRun := cmd.Bool("dry-run", false, "Count without creating")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		var cycle *uint
		if *cycleID > 0 {
			c := uint(*cycleID)
			cycle = &c
		}
		return cli.backfill(ctx, cycle, *dryRun)

	case "expire":
		cmd := flag.NewFlagSet("expire", flag.ExitOnError)
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.expire(ctx)

	case "override":
		cmd := flag.NewFlagSet("override", flag.ExitOnError)
		list := cmd.Bool("list", false, "List overridden users")
		set := cmd.Bool("set", false, "Set the override flag")
		reset := cmd.Bool("reset", false, "Clear the override flag")
		userID := cmd.String("user", "", "Target user ID")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		switch {
		case *list:
			return cli.listOverridden(ctx)
		case *set:
			if *userID == "" {
				cmd.Usage()
				return errHelp
			}
			return cli.setOverride(ctx, *userID)
		case *reset:
			if *userID == "" {
				cmd.Usage()
				return errHelp
			}
			return cli.resetOverride(ctx, *userID)
		default:
			cmd.Usage()
			return errHelp
		}

	case "import-enrollments":
		cmd := flag.NewFlagSet("import-enrollments", flag.ExitOnError)
		file := cmd.String("file", "", "Roster xlsx with student IDs in the first column")
		sectionID := cmd.Uint("section", 0, "Target class section ID")
		dryRun := cmd.Bool("dry-run", false, "Validate without enrolling")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *file == "" || *sectionID == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.importEnrollments(ctx, *file, uint(*sectionID), *dryRun)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) repair(ctx context.Context, dryRun bool) error {
	findings, err := cli.services.Maintenance().Repair(ctx, dryRun)
	if err != nil {
		return err
	}

	for _, f := range findings {
		state := "found"
		if f.Fixed {
			state = "fixed"
		} else if dryRun {
			state = "would fix"
		}
		fmt.Printf("%-8s user=%s role=%s: %s\n", state, f.UserID, f.Role, f.Problem)
	}
	fmt.Printf("%d finding(s)\n", len(findings))
	return nil
}

func (cli *commandLine) backfill(ctx context.Context, cycleID *uint, dryRun bool) error {
	report, err := cli.services.Maintenance().BackfillAll(ctx, cycleID, dryRun)
	if err != nil {
		return err
	}

	verb := "created"
	if dryRun {
		verb = "missing"
	}
	fmt.Printf("%d cycle(s) scanned, %d evaluation(s) %s\n",
		report.CyclesScanned, report.EvaluationsCreated, verb)
	return nil
}

func (cli *commandLine) expire(ctx context.Context) error {
	expired, err := cli.services.Evaluation().ExpireOverdue(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("%d evaluation(s) expired\n", expired)
	return nil
}

func (cli *commandLine) listOverridden(ctx context.Context) error {
	userIDs, err := cli.services.Role().ListOverridden(ctx)
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		fmt.Println(id)
	}
	fmt.Printf("%d user(s) overridden\n", len(userIDs))
	return nil
}

func (cli *commandLine) setOverride(ctx context.Context, userID string) error {
	if err := cli.services.Role().MarkOverride(ctx, userID); err != nil {
		return err
	}
	fmt.Printf("override set for user %s\n", userID)
	return nil
}

func (cli *commandLine) resetOverride(ctx context.Context, userID string) error {
	if err := cli.services.Role().ResetOverride(ctx, userID); err != nil {
		return err
	}
	fmt.Printf("override cleared for user %s\n", userID)
	return nil
}

func (cli *commandLine) importEnrollments(ctx context.Context, path string, sectionID uint, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := cli.services.Maintenance().ImportEnrollments(ctx, f, sectionID, dryRun)
	if err != nil {
		return err
	}

	fmt.Printf("%d row(s) read, %d enrolled, %d already enrolled\n",
		report.RowsRead, report.EnrollmentsNew, report.EnrollmentsSkip)
	for _, e := range report.Errors {
		fmt.Printf("error: %s\n", e)
	}
	return nil
}

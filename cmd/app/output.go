package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatMaybe(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printUser(u domain.User) {
	printKV([][2]string{
		{"id", u.ID},
		{"email", u.Email},
		{"name", u.FullName},
		{"role", string(u.Role)},
		{"active", strconv.FormatBool(u.IsActive)},
	})
}

func printProjects(items []domain.Project) {
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		rows = append(rows, []string{p.ID, p.Name, formatMaybe(p.TeamID), strconv.FormatBool(p.IsActive), formatTime(p.UpdatedAt)})
	}
	printTable([]string{"ID", "NAME", "TEAM", "ACTIVE", "UPDATED"}, rows)
}

func printProject(p domain.Project) {
	printKV([][2]string{
		{"id", p.ID},
		{"name", p.Name},
		{"description", p.Description},
		{"team", formatMaybe(p.TeamID)},
		{"active", strconv.FormatBool(p.IsActive)},
		{"version", strconv.Itoa(p.Version)},
		{"created", formatTime(p.CreatedAt)},
	})
}

func printStats(s domain.DashboardStats) {
	printKV([][2]string{
		{"projects", strconv.FormatInt(s.TotalProjects, 10)},
		{"test cases", strconv.FormatInt(s.TotalTestCases, 10)},
		{"executions", strconv.FormatInt(s.TotalExecutions, 10)},
		{"pass rate", strconv.FormatFloat(s.PassRate, 'f', 2, 64) + "%"},
		{"avg duration", strconv.FormatFloat(s.AverageExecutionTime, 'f', 2, 64) + "s"},
		{"running", strconv.FormatInt(s.ActiveTestRuns, 10)},
	})
	if len(s.RecentActivity) == 0 {
		return
	}
	fmt.Println()
	rows := make([][]string, 0, len(s.RecentActivity))
	for _, a := range s.RecentActivity {
		rows = append(rows, []string{formatTime(a.CreatedAt), a.UserName, a.Action, a.TargetType, a.TargetName})
	}
	printTable([]string{"WHEN", "WHO", "ACTION", "TYPE", "TARGET"}, rows)
}

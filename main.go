package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/antarex-ai/dashboard/config"
	"github.com/antarex-ai/dashboard/database"
	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/web"
	"github.com/antarex-ai/dashboard/web/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// loadEnv reads a .env file from the working directory when there is one.
// Variables already set in the environment win.
func loadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Println("unable to read .env:", err)
	}
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	logger.InitLogger(logger.ParseLevel(config.GetLogLevel()))
	defer logger.CloseLogger()

	// The database is optional. Without it the audit journal is off and
	// sessions are kept in memory.
	if err := database.InitDB(config.GetDBPath()); err != nil {
		logger.Warning("database disabled:", err)
	} else {
		defer database.CloseDB()
	}

	server := web.NewServer()
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("reloading on SIGHUP")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			loadEnv()
			server = web.NewServer()
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func showSetting() {
	settings := config.Settings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("current panel settings as follows:")
	for _, k := range keys {
		fmt.Printf("%-20s %s\n", k+":", settings[k])
	}
}

func openJournal() bool {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		fmt.Println("open audit journal failed:", err)
		return false
	}
	return true
}

func pruneAudit(days int) {
	if !openJournal() {
		return
	}
	defer database.CloseDB()

	auditService := service.AuditService{}
	n, err := auditService.CleanOldLogs(days)
	if err != nil {
		fmt.Println("prune audit journal failed:", err)
		return
	}
	fmt.Printf("removed %d audit entries older than %d days\n", n, days)
}

func listAudit(limit int) {
	if !openJournal() {
		return
	}
	defer database.CloseDB()

	auditService := service.AuditService{}
	logs, err := auditService.List(limit)
	if err != nil {
		fmt.Println("list audit journal failed:", err)
		return
	}
	for _, l := range logs {
		fmt.Printf("%s  %-15s %-12s %-20s %-8s %s %s\n",
			l.CreatedAt.Format("2006-01-02 15:04:05"), l.IP, l.Username, l.Action, l.Outcome, l.Target, l.Detail)
	}
}

func main() {
	loadEnv()

	var rootCmd = &cobra.Command{
		Use:   "antarex-dashboard",
		Short: "Web panel for the Antarex alert triage API",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Inspect settings",
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Run: func(cmd *cobra.Command, args []string) {
			showSetting()
		},
	}
	settingCmd.AddCommand(showCmd)

	var auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit journal",
	}

	var pruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove old audit entries",
		Run: func(cmd *cobra.Command, args []string) {
			days, _ := cmd.Flags().GetInt("days")
			pruneAudit(days)
		},
	}
	pruneCmd.Flags().Int("days", config.GetAuditRetentionDays(), "keep entries from the last N days")

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "Print the latest audit entries",
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			listAudit(limit)
		},
	}
	listCmd.Flags().Int("limit", 50, "number of entries to print")

	auditCmd.AddCommand(pruneCmd, listCmd)

	rootCmd.AddCommand(runCmd, settingCmd, auditCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

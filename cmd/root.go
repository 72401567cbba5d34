package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attendance-server",
	Short: "Employee attendance backend with face-embedding verification",
	Long: `Attendance Server is the backend for a face-recognition attendance
system. It registers employee face embeddings, records check-ins and
check-outs, reconciles batches captured offline, and serves attendance
reports over a REST API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

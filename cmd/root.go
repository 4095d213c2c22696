package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "face-vector",
	Short: "Extract face embedding vectors from images in object storage",
	Long: `Face Vector fetches an image from S3 (or an S3-compatible store),
detects a face with a Haar cascade and returns the face embedding vector
computed by a DeepFace API.

Run "face-vector lambda" as the AWS Lambda entrypoint, or use "invoke" and
"serve" to exercise the same handler locally.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

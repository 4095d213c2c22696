package cmd

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as the AWS Lambda function handler",
	Long: `Start the AWS Lambda runtime loop. The event is either
{"bucket": "...", "key": "..."} or an S3 notification; the function returns
{"statusCode": ..., "body": ...}.`,
	Args: cobra.NoArgs,
	RunE: runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := newPipeline(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	lambda.Start(p.handler.HandleLambda)
	return nil
}

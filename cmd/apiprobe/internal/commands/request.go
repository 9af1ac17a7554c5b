// Package commands implements the apiprobe subcommands.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayska/apiclient/app"
	"github.com/ayska/apiclient/httpclient"
)

// RequestOptions holds the flags of the request command.
type RequestOptions struct {
	Method  string
	Data    string
	Timeout time.Duration
	Retries int
}

// NewRequestCommand creates the request command. appOpts is passed to
// app.NewFromEnv.
func NewRequestCommand(appOpts app.Options) *cobra.Command {
	opts := &RequestOptions{}

	cmd := &cobra.Command{
		Use:   "request <path>",
		Short: "Send one request and print the response body",
		Example: `  # GET relative to client.baseurl
  APICLIENT_CLIENT_BASEURL=https://api.example.com apiprobe request /health

  # POST a JSON body with a tighter deadline
  apiprobe request /orders -X POST -d '{"sku":"A1"}' -t 20s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, appOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "JSON request body")
	cmd.Flags().DurationVarP(&opts.Timeout, "timeout", "t", time.Minute, "Overall deadline including retries")
	cmd.Flags().IntVarP(&opts.Retries, "retries", "r", 0, "Retry limit for this request (0 keeps the configured limit)")

	return cmd
}

func runRequest(cmd *cobra.Command, appOpts app.Options, opts *RequestOptions, path string) error {
	var body any
	if opts.Data != "" {
		if !json.Valid([]byte(opts.Data)) {
			return errors.New("--data is not valid JSON")
		}
		body = json.RawMessage(opts.Data)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	a, err := app.NewFromEnv(ctx, appOpts)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() { _ = a.Close() }()

	var reqOpts []httpclient.RequestOption
	if opts.Retries > 0 {
		reqOpts = append(reqOpts, httpclient.WithMaxRetries(opts.Retries))
	}
	resp, err := a.Client().Do(ctx, strings.ToUpper(opts.Method), path, body, reqOpts...)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), httpclient.FormatForLogging(err, path, time.Now()))
		return httpclient.Classify(err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d in %s (%d attempts)\n",
		resp.StatusCode, resp.Stats.ElapsedTime.Round(time.Millisecond), resp.Stats.Attempts)
	_, err = cmd.OutOrStdout().Write(resp.Body)
	return err
}

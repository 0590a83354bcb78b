package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newFetchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a tour's resolved cohort to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(cmd, v.GetString("url"), v.GetString("tour"), v.GetString("token"), v.GetString("out"))
		},
	}
	cmd.Flags().String("url", "http://localhost:8080", "server base URL")
	cmd.Flags().String("tour", "", "tour ID")
	cmd.Flags().String("token", "", "bearer token (or ROOMS_TOKEN)")
	cmd.Flags().String("out", "cohort.json", "output file")
	cmd.MarkFlagRequired("tour")
	bindFlags(v, cmd, "", "url", "tour", "token", "out")
	return cmd
}

func fetch(cmd *cobra.Command, baseURL, tourID, token, out string) error {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetAuthToken(token)

	resp, err := client.R().
		SetContext(cmd.Context()).
		SetPathParam("tourID", tourID).
		Get("/api/tours/{tourID}/travelers")
	if err != nil {
		return fmt.Errorf("fetching cohort: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetching cohort: %s: %s", resp.Status(), resp.String())
	}
	if err := os.WriteFile(out, resp.Body(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(resp.Body()))
	return nil
}

// Package cli implements docflowctl, a command line client for the docflow API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noah-isme/docflow-api/pkg/docflowclient"
)

const envPrefix = "DOCFLOW"

// NewRootCmd builds the docflowctl command tree. Flags fall back to
// DOCFLOW_BASE_URL, DOCFLOW_TOKEN and DOCFLOW_TIMEOUT.
func NewRootCmd() *cobra.Command {
	settings := viper.New()
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "docflowctl",
		Short:         "Drive document and form approvals from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("base-url", "http://localhost:8080", "API base URL")
	cmd.PersistentFlags().String("token", "", "bearer token")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "per request timeout")
	for _, name := range []string{"base-url", "token", "timeout"} {
		_ = settings.BindPFlag(name, cmd.PersistentFlags().Lookup(name))
	}

	factory := func() (*docflowclient.Client, error) {
		baseURL := strings.TrimSpace(settings.GetString("base-url"))
		if baseURL == "" {
			return nil, errors.New("--base-url is required")
		}
		token := strings.TrimSpace(settings.GetString("token"))
		if token == "" {
			return nil, errors.New("--token is required")
		}
		return docflowclient.New(baseURL, token, docflowclient.WithTimeout(settings.GetDuration("timeout"))), nil
	}

	cmd.AddCommand(newFormCmd(factory))
	cmd.AddCommand(newDocumentCmd(factory))
	cmd.AddCommand(newLogsCmd(factory))
	return cmd
}

// Execute runs docflowctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type clientFactory func() (*docflowclient.Client, error)

func printJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func parseID(name, raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || value == 0 {
		return 0, errors.Errorf("invalid %s %q", name, raw)
	}
	return uint(value), nil
}

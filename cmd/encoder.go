package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/livebridge/internal/encoder"
	"github.com/smazurov/livebridge/internal/process"
)

// CreateEncoderArgsCmd creates the encoder-args command, which prints the
// encoder command line the server would spawn.
func CreateEncoderArgsCmd(configure func() encoder.Config) *cobra.Command {
	var showKey bool

	cmd := &cobra.Command{
		Use:   "encoder-args",
		Short: "Print the encoder command line",
		Long:  `Builds the ffmpeg command from the current configuration without starting it. The stream key is masked unless --show-key is given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sup, err := encoder.New(configure(), nil)
			if err != nil {
				return err
			}

			args := sup.RedactedArgs()
			if showKey {
				args = sup.Args()
			}
			if len(args) == 0 {
				return encoder.ErrNoTarget
			}

			quoted := make([]string, len(args))
			for i, arg := range args {
				quoted[i] = quote(arg)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(quoted, " "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showKey, "show-key", false, "Print the stream key in clear text")

	return cmd
}

// quote wraps arguments that would not survive process.ParseCommand as-is.
func quote(arg string) string {
	if arg == "" {
		return `""`
	}
	if parsed, err := process.ParseCommand(arg); err == nil && len(parsed) == 1 && parsed[0] == arg {
		return arg
	}
	escaped := strings.ReplaceAll(arg, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

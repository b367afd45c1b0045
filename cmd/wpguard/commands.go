package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"wpguard/internal/bootstrap"
	"wpguard/internal/domain/changelog"
	"wpguard/internal/domain/upload"
	"wpguard/internal/platform/jsonx"
)

type cli struct {
	configPath string
	noDotEnv   bool
}

func (c *cli) options() bootstrap.Options {
	return bootstrap.Options{ConfigPath: c.configPath, UseDotEnv: !c.noDotEnv}
}

// NewRootCommand 构建命令行入口，不带子命令时启动服务
func NewRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "wpguard",
		Short:         "WordPress media upload guard and plugin changelog watcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), c)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to the yaml config (default $WPGUARD_CONFIG or .config.yaml)")
	root.PersistentFlags().BoolVar(&c.noDotEnv, "no-dotenv", false, "Do not read .env before loading config")

	root.AddCommand(newServeCommand(c))
	root.AddCommand(newCheckCommand(c))
	root.AddCommand(newExamineCommand(c))
	root.AddCommand(newWatchCommand(c))
	return root
}

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the changelog scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Printf("[%s] [INFO] [引导] 开始启动 wpguard...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	return bootstrap.Run(ctx, c.options())
}

func newCheckCommand(c *cli) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [plugin...]",
		Short: "Compare readme and changelog page once and print the report",
		Long: "Runs one changelog pass. Without arguments the stored watch list is used;\n" +
			"plugin identifiers may be slugs or plugin files such as akismet/akismet.php.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.Prepare(cmd.Context(), c.options())
			if err != nil {
				return err
			}
			defer app.Close()

			var report *changelog.Report
			if len(args) > 0 {
				report = app.Watcher.CheckSlugs(cmd.Context(), args)
			} else if report, err = app.Watcher.CheckAll(cmd.Context()); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if strict && (report.Mismatched > 0 || report.Failed > 0) {
				return fmt.Errorf("%d mismatched, %d failed", report.Mismatched, report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero on any mismatch or failure")
	return cmd
}

func newExamineCommand(c *cli) *cobra.Command {
	var name, typ string
	cmd := &cobra.Command{
		Use:   "examine <file>",
		Short: "Run the upload policy against a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			info, err := os.Stat(file)
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(file)
			}
			if typ == "" {
				typ = mime.TypeByExtension(filepath.Ext(name))
			}

			app, err := bootstrap.Prepare(cmd.Context(), c.options())
			if err != nil {
				return err
			}
			defer app.Close()

			result := app.Validator.Examine(cmd.Context(), upload.Descriptor{
				Type:    typ,
				Name:    name,
				TmpPath: file,
				Size:    info.Size(),
			})
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if result.Error != "" {
				return fmt.Errorf("rejected: %s", result.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Client file name (default: base name of <file>)")
	cmd.Flags().StringVar(&typ, "type", "", "MIME type (default: guessed from the extension)")
	return cmd
}

func newWatchCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <plugin>",
		Short: "Toggle a plugin in the changelog watch list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.Prepare(cmd.Context(), c.options())
			if err != nil {
				return err
			}
			defer app.Close()

			watching, err := app.Watcher.ToggleWatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "no longer watched"
			if watching {
				state = "watched"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", args[0], state)
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	raw, err := jsonx.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

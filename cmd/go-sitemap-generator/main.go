package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	gen "github.com/kotylevskiy/go-sitemap-generator"
	"github.com/kotylevskiy/go-sitemap-generator/linksource"
	"github.com/kotylevskiy/go-sitemap-generator/s3adapter"
)

func main() {
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:          "go-sitemap-generator",
		Short:        "Generate, inspect and serve XML sitemaps",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range os.Args[1:] {
				if arg == "--" {
					return nil
				}
				if strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") && arg != "-h" {
					return fmt.Errorf("invalid flag %q (use --)", arg)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	newLogger := func() (*slog.Logger, error) {
		level, err := resolveLogLevel(logLevel)
		if err != nil {
			return nil, err
		}
		return buildLogger(os.Stderr, logFormat, level)
	}

	root.AddCommand(generateCommand(newLogger), inspectCommand(newLogger), serveCommand(newLogger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func generateCommand(newLogger func() (*slog.Logger, error)) *cobra.Command {
	var (
		host         string
		publicPath   string
		sitemapsPath string
		compress     string
		createIndex  string
		linksFile    string
		dryRun       bool
		robots       bool
		verbose      bool
		s3Bucket     string
		s3Region     string
		s3Prefix     string
	)

	cmd := &cobra.Command{
		Use:   "generate [flags] [run file]",
		Short: "Generate sitemaps from a run file (.yaml, .toml) and/or a list of links",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			run := &linksource.RunFile{}
			if len(args) == 1 {
				if run, err = linksource.Load(args[0]); err != nil {
					return err
				}
			}
			opts, err := run.Options()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("host") || opts.DefaultHost == "" {
				opts.DefaultHost = host
			}
			if flags.Changed("public-path") {
				opts.PublicPath = publicPath
			}
			if flags.Changed("sitemaps-path") {
				opts.SitemapsPath = sitemapsPath
			}
			if flags.Changed("compress") || len(args) == 0 {
				if opts.Compress, err = gen.ParseCompressPolicy(compress); err != nil {
					return err
				}
			}
			if flags.Changed("create-index") || len(args) == 0 {
				if opts.CreateIndex, err = gen.ParseCreateIndexPolicy(createIndex); err != nil {
					return err
				}
			}
			if opts.DefaultHost == "" {
				return errors.New("missing --host (or default_host in the run file)")
			}

			opts.Logger = logger
			switch {
			case dryRun:
				opts.Adapter = gen.NewMemoryAdapter()
			case s3Bucket != "":
				adapter, err := s3adapter.NewFromEnv(ctx, s3Region, s3adapter.Options{
					Bucket: s3Bucket,
					Prefix: s3Prefix,
					Local:  gen.NewFileAdapter(),
				})
				if err != nil {
					return err
				}
				opts.Adapter = adapter
			}
			if verbose || isatty.IsTerminal(os.Stderr.Fd()) {
				opts.OnWrite = func(stat gen.FileStat) {
					fmt.Fprintf(os.Stderr, "+ %-50s %8s links / %s\n", stat.Path, humanize.Comma(int64(stat.Links)), humanize.Bytes(uint64(stat.Bytes)))
				}
			}

			started := time.Now()
			ls, err := gen.New(opts)
			if err != nil {
				return err
			}
			if err := run.Feed(ctx, ls); err != nil {
				return err
			}
			if linksFile != "" {
				if err := linksource.FeedText(ctx, ls, linksFile); err != nil {
					return err
				}
			}
			if err := ls.Finalize(ctx); err != nil {
				return err
			}
			if (robots || run.Robots) && !dryRun {
				if _, err := ls.UpdateRobots(); err != nil {
					return err
				}
			}

			summary := ls.Summary()
			fmt.Fprintf(os.Stderr, "Sitemap stats: %s links / %d sitemaps / %s\n",
				humanize.Comma(int64(summary.Links)), summary.Files, time.Since(started).Round(time.Millisecond))
			_, err = fmt.Fprintln(os.Stdout, summary.IndexURL)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&host, "host", "", "Default host links resolve against (e.g. https://example.com)")
	flags.StringVar(&publicPath, "public-path", "public", "Local directory mapped to the host")
	flags.StringVar(&sitemapsPath, "sitemaps-path", "", "Directory below the public path holding the sitemaps")
	flags.StringVar(&compress, "compress", "all", "Compression policy (all, never, all_but_first)")
	flags.StringVar(&createIndex, "create-index", "auto", "Index policy (auto, always, never)")
	flags.StringVar(&linksFile, "links", "", "Plain-text file with one link per line")
	flags.BoolVar(&dryRun, "dry-run", false, "Build everything in memory without writing files")
	flags.BoolVar(&robots, "robots", false, "Advertise the sitemap in robots.txt")
	flags.BoolVar(&verbose, "verbose", false, "Print one line per written file")
	flags.StringVar(&s3Bucket, "s3-bucket", "", "Also upload files to this S3 bucket")
	flags.StringVar(&s3Region, "s3-region", "", "AWS region of the S3 bucket")
	flags.StringVar(&s3Prefix, "s3-prefix", "", "Key prefix for uploaded files")
	return cmd
}

func inspectCommand(newLogger func() (*slog.Logger, error)) *cobra.Command {
	var (
		host       string
		publicPath string
		maxDepth   int
		listURLs   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [flags] <sitemap or index URL>",
		Short: "Read generated sitemaps back and report their contents",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return nil
			}
			return errors.New("missing URL argument")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			reader := gen.NewReader(gen.ReaderOptions{
				Host:       host,
				PublicPath: publicPath,
				MaxDepth:   maxDepth,
				Logger:     logger,
			})
			if listURLs {
				return reader.Walk(cmd.Context(), args[0], func(item gen.Item) error {
					_, err := fmt.Fprintln(os.Stdout, item.Loc)
					return err
				})
			}
			report, err := reader.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, doc := range report.Documents {
				kind := "sitemap"
				if doc.Index {
					kind = "index"
				}
				fmt.Fprintf(os.Stdout, "%-7s %8s  %s\n", kind, humanize.Comma(int64(doc.Entries)), doc.Loc)
			}
			fmt.Fprintf(os.Stdout, "total   %8s URLs\n", humanize.Comma(int64(report.URLs)))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&host, "host", "", "Read URLs below this host from --public-path instead of HTTP")
	flags.StringVar(&publicPath, "public-path", "public", "Local directory mapped to --host")
	flags.IntVar(&maxDepth, "max-depth", 0, "Maximum index nesting (0 = default)")
	flags.BoolVar(&listURLs, "urls", false, "Print every URL instead of a summary")
	return cmd
}

func serveCommand(newLogger func() (*slog.Logger, error)) *cobra.Command {
	var (
		addr         string
		publicPath   string
		sitemapsPath string
		robots       bool
	)

	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Serve generated sitemaps over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			router := mux.NewRouter()
			gen.Handle(router, gen.ServeOptions{PublicPath: publicPath, SitemapsPath: sitemapsPath, Robots: robots})

			server := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()
			logger.Info(fmt.Sprintf("serving %s on %s", publicPath, addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":8080", "Listen address")
	flags.StringVar(&publicPath, "public-path", "public", "Directory holding the generated files")
	flags.StringVar(&sitemapsPath, "sitemaps-path", "", "Directory below the public path holding the sitemaps")
	flags.BoolVar(&robots, "robots", true, "Serve robots.txt from the public path")
	return cmd
}

func buildLogger(w io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q (use text, json)", format)
}

func resolveLogLevel(flagValue string) (slog.Level, error) {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		value = strings.TrimSpace(os.Getenv("GO_SITEMAP_GENERATOR_LOG_LEVEL"))
	}
	if value == "" {
		return slog.LevelError, nil
	}
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (use debug, info, warn, error)", value)
	}
}

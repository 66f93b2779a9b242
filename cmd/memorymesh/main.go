// Command memorymesh is a small CLI for driving a memory-augmented agent
// from the terminal: an interactive chat REPL and a document ingestion
// command. Configuration comes from MEMORYMESH_* environment variables.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/memorymesh"
	"github.com/hupe1980/memorymesh/agent"
	"github.com/hupe1980/memorymesh/config"
	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/ingest"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/vectorstore/chromem"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "memorymesh",
		Short:         "Memory-augmented conversational agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newChatCommand())
	root.AddCommand(newIngestCommand())

	return root
}

func loadLogger(cfg *config.Config) logging.Logger {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLogLevel(cfg.LogLevel)
	lc.Format = "text"
	lc.Output = os.Stderr
	return logging.NewLogger(lc).WithComponent("cli")
}

func newChatCommand() *cobra.Command {
	var (
		threadID  string
		userID    string
		sessionID string
		stream    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with the agent",
		Example: strings.Join([]string{
			"  memorymesh chat",
			"  memorymesh chat --thread support-42 --user alice",
			"  memorymesh chat --stream",
		}, "\n"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := memorymesh.NewFromConfig(cfg, func(o *memorymesh.Options) {
				o.ThreadID = threadID
				o.UserID = userID
				o.SessionID = sessionID
				o.Logger = loadLogger(cfg)
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runREPL(ctx, a, stream)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread identifier for conversation continuity")
	cmd.Flags().StringVar(&userID, "user", "", "User identifier scoping the memory namespace")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier scoping the memory namespace")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream incremental status envelopes")

	return cmd
}

func runREPL(ctx context.Context, a *agent.MemoryAgent, stream bool) error {
	fmt.Println("memorymesh chat (type 'exit' to quit)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if stream {
			envCh, errCh := a.Stream(ctx, line, "")
			for env := range envCh {
				printEnvelope(env)
			}
			if err := <-errCh; err != nil {
				fmt.Fprintln(os.Stderr, "stream aborted:", err)
			}
			continue
		}

		printEnvelope(a.Invoke(ctx, line, ""))
	}
}

func printEnvelope(env core.Envelope) {
	if env.IsError() {
		fmt.Printf("[error %d] %s\n", env.Error.Code, env.Error.Message)
		return
	}
	fmt.Println(env.Result.Content)
}

func newIngestCommand() *cobra.Command {
	var (
		threadID  string
		userID    string
		sessionID string
		chunkSize int
		overlap   int
	)

	cmd := &cobra.Command{
		Use:   "ingest <url>...",
		Short: "Fetch documents and store them as memories",
		Args:  cobra.MinimumNArgs(1),
		Example: strings.Join([]string{
			"  memorymesh ingest https://example.com/faq",
			"  memorymesh ingest --thread kb --chunk-size 500 https://example.com/doc",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := loadLogger(cfg)

			store, err := chromem.New(embedding.NewHashEmbedder(cfg.Vector.Dimension), func(o *chromem.Options) {
				o.CollectionName = cfg.Vector.Collection
				o.PersistPath = cfg.Vector.PersistPath
				o.Logger = logger
			})
			if err != nil {
				return err
			}
			if err := store.EnsureCollection(cmd.Context(), core.CollectionConfig{
				Name:      cfg.Vector.Collection,
				Dimension: cfg.Vector.Dimension,
				Distance:  core.Distance(cfg.Vector.Distance),
			}); err != nil {
				return err
			}

			ns := core.NewNamespace(threadID, userID, sessionID)
			pipe := ingest.NewPipeline(ingest.NewHTTPLoader(), ingest.NewCharacterSplitter(chunkSize, overlap), store, logger)

			stored, err := pipe.Run(cmd.Context(), ns, args)
			if err != nil {
				return err
			}

			fmt.Printf("stored %d chunk(s) in namespace %s\n", stored, ns.Key())
			return nil
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "ingest", "Thread identifier of the target namespace")
	cmd.Flags().StringVar(&userID, "user", "", "User identifier of the target namespace")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier of the target namespace")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "Chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", 200, "Overlap between consecutive chunks")

	return cmd
}

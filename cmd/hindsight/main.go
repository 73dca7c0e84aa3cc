package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hindsight/internal/config"
	"hindsight/internal/db"
	"hindsight/internal/domain"
	"hindsight/internal/journal"
	"hindsight/internal/migrate"
	"hindsight/internal/repo"
	"hindsight/internal/server"
	"hindsight/internal/validate"
)

var rootCmd = &cobra.Command{
	Use:   "hindsight",
	Short: "Hindsight decision journal",
	Long: `Hindsight keeps a personal decision journal with irrevocable lifecycle rules.
- A decision records a choice, its reasoning, the options weighed, a prediction, and a confidence score.
- Exactly one outcome may be logged per decision; logging it flips the decision from pending to completed, once, forever.
- A decision with an outcome is permanently locked: it can never be edited or deleted.
- A decision without an outcome may still be deleted by its owner.
- Listings show pending decisions first, newest first.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HINDSIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "user identifier for local commands")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
}

func registerCommands() {
	rootCmd.AddCommand(decisionCmd())
	rootCmd.AddCommand(outcomeCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func withJournal(ctx context.Context, fn func(ctx context.Context, j journal.Journal) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, journal.New(conn))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func decisionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "decision", Short: "Manage decisions"}
	cmd.AddCommand(decisionCreateCmd())
	cmd.AddCommand(decisionListCmd())
	cmd.AddCommand(decisionShowCmd())
	cmd.AddCommand(decisionDeleteCmd())
	return cmd
}

func decisionCreateCmd() *cobra.Command {
	var (
		title      string
		contextStr string
		reasoning  string
		options    []string
		chosen     string
		prediction string
		confidence int
		reviewIn   time.Duration
		tags       []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				in := validate.DecisionInput{
					Title:          title,
					Context:        contextStr,
					Reasoning:      reasoning,
					ChosenOptionID: chosen,
					Prediction:     prediction,
					Confidence:     &confidence,
					ReviewDate:     time.Now().Add(reviewIn).UTC().Format(time.RFC3339),
					Tags:           tags,
				}
				for _, raw := range options {
					id, text, ok := strings.Cut(raw, "=")
					if !ok {
						return fmt.Errorf("invalid option %q: expected id=text", raw)
					}
					in.Options = append(in.Options, domain.Option{ID: id, Text: text})
				}
				d, err := j.CreateDecision(ctx, viper.GetString("user-id"), in)
				if err != nil {
					return err
				}
				return printJSON(d)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "decision title")
	cmd.Flags().StringVar(&contextStr, "context", "", "situation context")
	cmd.Flags().StringVar(&reasoning, "reasoning", "", "reasoning behind the choice")
	cmd.Flags().StringArrayVar(&options, "option", nil, "option as id=text (repeatable, 2-5 required)")
	cmd.Flags().StringVar(&chosen, "chosen", "", "id of the chosen option")
	cmd.Flags().StringVar(&prediction, "prediction", "", "predicted result")
	cmd.Flags().IntVar(&confidence, "confidence", 3, "confidence 1-5")
	cmd.Flags().DurationVar(&reviewIn, "review-in", 30*24*time.Hour, "review date offset from now")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags")
	return cmd
}

func decisionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List decisions, pending first, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				items, err := j.ListDecisions(ctx, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Title", "Status", "Confidence", "Review", "Result"})
				for _, d := range items {
					result := ""
					if d.Outcome != nil {
						result = d.Outcome.Result
					}
					t.AppendRow(table.Row{d.ID, d.Title, d.Status, d.Confidence, d.ReviewDate, result})
				}
				t.Render()
				return nil
			})
		},
	}
}

func decisionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a decision with its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				d, err := j.GetDecision(ctx, viper.GetString("user-id"), args[0])
				if err != nil {
					return err
				}
				return printJSON(d)
			})
		},
	}
}

func decisionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a decision (only while no outcome exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				if err := j.DeleteDecision(ctx, viper.GetString("user-id"), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func outcomeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "outcome", Short: "Log decision outcomes"}
	cmd.AddCommand(outcomeLogCmd())
	return cmd
}

func outcomeLogCmd() *cobra.Command {
	var (
		decisionID string
		result     string
		impact     int
		correct    bool
		lessons    string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log the single outcome for a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				in := validate.OutcomeInput{
					DecisionID:       decisionID,
					Result:           result,
					ImpactScore:      &impact,
					WasCorrectChoice: &correct,
					LessonsLearned:   lessons,
				}
				o, err := j.LogOutcome(ctx, viper.GetString("user-id"), in)
				if err != nil {
					return err
				}
				return printJSON(o)
			})
		},
	}
	cmd.Flags().StringVar(&decisionID, "decision", "", "decision id")
	cmd.Flags().StringVar(&result, "result", "", "good, bad, or mixed")
	cmd.Flags().IntVar(&impact, "impact", 3, "impact score 1-5")
	cmd.Flags().BoolVar(&correct, "correct", false, "was the chosen option correct")
	cmd.Flags().StringVar(&lessons, "lessons", "", "lessons learned (min 10 chars)")
	_ = cmd.MarkFlagRequired("decision")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Audit log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				events, err := j.Repo.LatestEvents(ctx, viper.GetString("user-id"), n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Payload"})
				for _, e := range events {
					t.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.Payload})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of events")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				raw := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					OwnerID: viper.GetString("user-id"),
					Name:    name,
					KeyHash: repo.HashAPIKey(raw),
				}
				if err := j.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				fmt.Println("api key (store it now, the plaintext is not kept):", raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				keys, err := j.Repo.ListAPIKeys(ctx, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					t.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				t.Render()
				return nil
			})
		},
	}
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(ctx context.Context, j journal.Journal) error {
				if err := j.Repo.DeleteAPIKey(ctx, viper.GetString("user-id"), args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for the current user (requires HINDSIGHT_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("HINDSIGHT_JWT_SECRET")
			token, err := server.SignToken(secret, viper.GetString("user-id"), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			j := journal.New(conn)
			authCfg := server.AuthConfig{
				JWTSecret:             os.Getenv("HINDSIGHT_JWT_SECRET"),
				AllowLegacyUserHeader: cfg.Auth.AllowLegacyUserHeader,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("HINDSIGHT_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Journal: j, BasePath: basePath, Auth: authCfg, Webhooks: cfg.Webhooks})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Hindsight API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

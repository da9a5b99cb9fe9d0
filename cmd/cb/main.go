package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"careboard/internal/config"
	"careboard/internal/db"
	"careboard/internal/domain"
	"careboard/internal/engine"
	"careboard/internal/form"
	"careboard/internal/migrate"
	"careboard/internal/notify"
	"careboard/internal/repo"
	"careboard/internal/server"
	"careboard/internal/tui"
	careboardsdk "careboard/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "cb",
	Short: "Careboard CLI",
	Long: `Careboard manages clinical administration tasks linked to patients.
The record store is served over HTTP; the edit form talks to it through the
SDK client and resolves patient references with a live search.`,
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
	viper.SetEnvPrefix("CAREBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("server", "", "record service URL (defaults to config addr)")
	rootCmd.PersistentFlags().String("token", "", "bearer session token")
	rootCmd.PersistentFlags().String("theme", "", "theme mode: light or dark (defaults to config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("theme", rootCmd.PersistentFlags().Lookup("theme"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(logCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
				return err
			}
			if err := config.WriteDefault(workspace); err != nil {
				return err
			}
			version, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized careboard workspace in %s (schema v%d)\n", workspace, version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the record service",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			conn, err := db.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			if err := migrate.Migrate(conn, logger); err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret: os.Getenv("CAREBOARD_JWT_SECRET"),
				DevActor:  viper.GetString("actor-id"),
				Logger:    logger,
			}
			if authCfg.JWTSecret == "" {
				logger.Warn().Msg("CAREBOARD_JWT_SECRET not set; serving in dev mode without auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Logger: logger})
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
			logger.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving careboard API")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskEditCmd())
	task.AddCommand(taskUpdateCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var patientID int64
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTasks(ctx, repo.TaskFilters{PatientID: patientID, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderTaskTable(items)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&patientID, "patient", 0, "filter by patient id")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func taskAddCmd() *cobra.Command {
	var title, description, expertise string
	var patientID int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskCreateOptions{
					Title:       title,
					Description: description,
					PatientID:   patientID,
					ActorID:     viper.GetString("actor-id"),
				}
				if expertise != "" {
					opts.Expertise = &expertise
				}
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&expertise, "expertise", "", "assigned expertise")
	cmd.Flags().Int64Var(&patientID, "patient", 0, "linked patient id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withRepo(func(ctx context.Context, r repo.Repo) error {
				t, err := r.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
}

func taskEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			client := apiClient(cfg)
			ctx := cmd.Context()
			item, err := client.GetTask(ctx, id)
			if err != nil {
				return err
			}
			updated, err := tui.Run(ctx, tui.Options{
				Task:    item,
				Service: client,
				Theme:   themeMode(cfg),
				Catalog: cfg.Expertise.Catalog,
				Knows:   cfg.KnowsExpertise,
			})
			if err != nil {
				return err
			}
			if !updated {
				fmt.Println("No changes saved.")
				return nil
			}
			// Refresh the listing the way the host table would.
			items, err := client.ListTasks(ctx, 0, 0)
			if err != nil {
				return err
			}
			renderTaskTable(items)
			return nil
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, expertise, patient string
	var complete bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task non-interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			client := apiClient(cfg)
			ctx := cmd.Context()
			item, err := client.GetTask(ctx, id)
			if err != nil {
				return err
			}
			draft := form.NewDraft(item)
			draft.AddRule(form.FieldExpertise, form.Vocabulary(form.FieldExpertise, cfg.KnowsExpertise))
			if cmd.Flags().Changed("title") {
				draft.SetField(form.FieldTitle, title)
			}
			if cmd.Flags().Changed("description") {
				draft.SetField(form.FieldDescription, description)
			}
			if cmd.Flags().Changed("expertise") {
				draft.SetField(form.FieldExpertise, expertise)
			}
			if cmd.Flags().Changed("patient") {
				draft.SetField(form.FieldPatient, patient)
			}
			if cmd.Flags().Changed("complete") {
				draft.SetComplete(complete)
			}
			submitter := &form.Submitter{
				Service:  client,
				Reporter: notify.NewTerminal(os.Stderr, themeMode(cfg)),
				OnSuccess: func(ctx context.Context) error {
					return printJSON(item)
				},
			}
			if err := submitter.Submit(ctx, draft, &item); err != nil {
				if errors.Is(err, form.ErrValidation) {
					for _, field := range []form.Field{form.FieldTitle, form.FieldPatient, form.FieldExpertise} {
						if ferr := draft.FieldError(field); ferr != nil {
							fmt.Fprintf(os.Stderr, "  %s: %v\n", field, ferr)
						}
					}
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&expertise, "expertise", "", "assigned expertise")
	cmd.Flags().StringVar(&patient, "patient", "", "linked patient id")
	cmd.Flags().BoolVar(&complete, "complete", false, "completion flag")
	return cmd
}

func patientCmd() *cobra.Command {
	patient := &cobra.Command{Use: "patient", Short: "Manage patients"}
	patient.AddCommand(patientAddCmd())
	patient.AddCommand(patientListCmd())
	return patient
}

func patientAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreatePatient(ctx, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "patient name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func patientListCmd() *cobra.Command {
	var query string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, r repo.Repo) error {
				items, err := r.SearchPatients(ctx, query, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderPatientTable(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "name search query")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func sessionCmd() *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Manage session credentials"}
	session.AddCommand(sessionTokenCmd())
	return session
}

func sessionTokenCmd() *cobra.Command {
	var actor string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a dev session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("CAREBOARD_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("CAREBOARD_JWT_SECRET is required to mint tokens")
			}
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			token, err := server.MintToken(secret, actor, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id (defaults to --actor-id)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func logCmd() *cobra.Command {
	logC := &cobra.Command{Use: "log", Short: "Inspect the audit log"}
	logC.AddCommand(logTailCmd())
	return logC
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind string
	var entityID int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				renderEventTable(events)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().Int64Var(&entityID, "entity-id", 0, "entity id")
	return cmd
}

// --- helpers ---

func withEngine(fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		return err
	}
	return fn(context.Background(), engine.New(conn, cfg))
}

func withRepo(fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		return err
	}
	return fn(context.Background(), repo.Repo{DB: conn})
}

func apiClient(cfg *config.Config) *careboardsdk.Client {
	base := viper.GetString("server")
	if base == "" {
		base = "http://" + cfg.Server.Addr
	}
	client := careboardsdk.New(base)
	client.BasePath = cfg.Server.BasePath
	client.Token = viper.GetString("token")
	return client
}

func themeMode(cfg *config.Config) string {
	if mode := viper.GetString("theme"); mode != "" {
		return mode
	}
	return cfg.UI.Theme
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTaskTable(items []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Patient", "Expertise", "Complete", "Updated"})
	for _, t := range items {
		expertise := ""
		if t.Expertise != nil {
			expertise = *t.Expertise
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.PatientID, expertise, t.Complete, t.UpdatedAt})
	}
	tw.Render()
}

func renderPatientTable(items []domain.Patient) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Active", "Created"})
	for _, p := range items {
		tw.AppendRow(table.Row{p.ID, p.Name, p.Active, p.CreatedAt})
	}
	tw.Render()
}

func renderEventTable(items []domain.Event) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
	for _, e := range items {
		tw.AppendRow(table.Row{e.ID, e.TS, e.Type, fmt.Sprintf("%s/%d", e.EntityKind, e.EntityID), e.ActorID})
	}
	tw.Render()
}

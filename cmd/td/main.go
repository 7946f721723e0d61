package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdesk/internal/audit"
	"taskdesk/internal/auth"
	"taskdesk/internal/blob"
	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/migrate"
	"taskdesk/internal/repo"
	"taskdesk/internal/server"
	"taskdesk/internal/token"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdesk CLI",
	Long: `Taskdesk is a task-management backend: tasks, users, messages and
announcements behind a token-authenticated HTTP API.

Start the API with 'td serve' (TASKDESK_AUTH_SECRET required), manage
accounts with 'td user', and load demo data with 'td seed'.`,
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
	viper.SetEnvPrefix("TASKDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "taskdesk.yml", "config file")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default .taskdesk)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(seedCmd())
}

func newLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("config"), viper.GetViper())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger()
			conn, err := db.Open(db.Config{DataDir: cfg.Storage.DataDir})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			blobs, err := blob.NewStore(cfg.Storage.UploadDir)
			if err != nil {
				return err
			}
			users := repo.Users{DB: conn}
			codec := token.NewCodec([]byte(cfg.Auth.Secret))
			authn := auth.NewAuthenticator(users, codec, cfg.Auth.TokenTTL.Std())
			handler, err := server.New(server.Config{
				Repo:       repo.Repo{DB: conn},
				Users:      users,
				Auth:       authn,
				Audit:      audit.Writer{DB: conn, Log: log},
				Blobs:      blobs,
				BasePath:   cfg.Server.BasePath,
				BcryptCost: cfg.Auth.BcryptCost,
				Log:        log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info().
				Str("addr", cfg.Server.Addr).
				Str("base_path", cfg.Server.BasePath).
				Msg("serving taskdesk API")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(conn *sql.DB) error {
				if err := migrate.Migrate(conn); err != nil {
					return err
				}
				fmt.Println("migrations applied")
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage user accounts"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userDeleteCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var name, email, password, role, department, position string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok := domain.ParseRole(role)
			if !ok {
				return fmt.Errorf("invalid role %q (admin or employee)", role)
			}
			return withDB(func(conn *sql.DB) error {
				users := repo.Users{DB: conn}
				p, err := users.Create(cmd.Context(), domain.Principal{
					Name:       name,
					Email:      email,
					Role:       parsed,
					Department: department,
					Position:   position,
				}, password, auth.DefaultBcryptCost)
				if err != nil {
					return err
				}
				return printUser(p.Public())
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", "employee", "role (admin or employee)")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().StringVar(&position, "position", "", "position")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(conn *sql.DB) error {
				users := repo.Users{DB: conn}
				items, err := users.List(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					summaries := make([]domain.PrincipalSummary, 0, len(items))
					for _, p := range items {
						summaries = append(summaries, p.Public())
					}
					return printJSON(summaries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Department"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Email, p.Role, p.Department})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(conn *sql.DB) error {
				users := repo.Users{DB: conn}
				if err := users.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

// seedCmd loads the demo accounts used in development and the README
// examples. Existing emails are left untouched.
func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed demo users",
		RunE: func(cmd *cobra.Command, args []string) error {
			demo := []struct {
				p        domain.Principal
				password string
			}{
				{domain.Principal{Name: "Admin User", Email: "admin@example.com", Role: domain.RoleAdmin, Department: "Management", Position: "Administrator"}, "admin123"},
				{domain.Principal{Name: "Jane Employee", Email: "jane@example.com", Role: domain.RoleEmployee, Department: "Engineering", Position: "Developer"}, "jane1234"},
				{domain.Principal{Name: "Sam Employee", Email: "sam@example.com", Role: domain.RoleEmployee, Department: "Engineering", Position: "Designer"}, "sam12345"},
			}
			return withDB(func(conn *sql.DB) error {
				users := repo.Users{DB: conn}
				for _, d := range demo {
					p, err := users.Create(cmd.Context(), d.p, d.password, auth.DefaultBcryptCost)
					if errors.Is(err, repo.ErrEmailExists) {
						fmt.Println("exists:", d.p.Email)
						continue
					}
					if err != nil {
						return err
					}
					fmt.Printf("created %s (%s)\n", p.Email, p.Role)
				}
				return nil
			})
		},
	}
}

func withDB(fn func(*sql.DB) error) error {
	dataDir := viper.GetString("data-dir")
	if dataDir == "" {
		dataDir = config.Default().Storage.DataDir
	}
	conn, err := db.Open(db.Config{DataDir: dataDir})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(conn)
}

func printUser(p domain.PrincipalSummary) error {
	if viper.GetBool("json") {
		return printJSON(p)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
	tw.AppendRow(table.Row{p.ID, p.Name, p.Email, p.Role})
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

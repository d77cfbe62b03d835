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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"consulaire/internal/config"
	"consulaire/internal/db"
	"consulaire/internal/domain"
	"consulaire/internal/geo"
	"consulaire/internal/lifecycle"
	"consulaire/internal/migrate"
	"consulaire/internal/repo"
	"consulaire/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cns",
	Short: "Consulaire CLI",
	Long: `Consulaire manages consular service requests for a diplomatic post.
- Workspace: the .consulaire directory holding the request database.
- Directory: the static list of missions (embassies, consulates general) in consulaire.yml.
- Jurisdiction: the mission responsible for a position; a consulate general supersedes the embassy.
- Requests: service requests moving draft -> submitted -> under_review -> ... -> completed.
- Activities: the append-only audit history, view with 'cns request log'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("CONSULAIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(countsCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default consulaire.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(orgID)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "organization", "org-main", "organization id")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func missionCmd() *cobra.Command {
	m := &cobra.Command{Use: "mission", Short: "Mission directory and jurisdiction"}
	m.AddCommand(missionListCmd())
	m.AddCommand(missionResolveCmd())
	return m
}

func missionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List diplomatic missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			missions := cfg.Missions()
			if viper.GetBool("json") {
				return printJSON(missions)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Kind", "Country", "City", "Lon", "Lat"})
			for _, m := range missions {
				tw.AppendRow(table.Row{m.ID, m.Kind, m.CountryCode, m.City, m.Longitude, m.Latitude})
			}
			tw.Render()
			return nil
		},
	}
}

func missionResolveCmd() *cobra.Command {
	var lon, lat float64
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve consular jurisdiction for a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("lon") || !cmd.Flags().Changed("lat") {
				return errors.New("position required: --lon and --lat must be set")
			}
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			ranked := geo.Rank(geo.Point{Longitude: lon, Latitude: lat}, cfg.Missions())
			assignment := geo.Resolve(ranked)
			if viper.GetBool("json") {
				return printJSON(assignment)
			}
			printAssigned := func(label string, m *geo.RankedMission) {
				if m == nil {
					fmt.Printf("%s: none\n", label)
					return
				}
				fmt.Printf("%s: %s (%s, %.1f km)\n", label, m.ID, m.City, m.DistanceKm)
			}
			printAssigned("Nearest consulate general", assignment.NearestConsulateGeneral)
			printAssigned("Nearest embassy", assignment.NearestEmbassy)
			printAssigned("Effective jurisdiction", assignment.Effective)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	return cmd
}

func requestCmd() *cobra.Command {
	req := &cobra.Command{Use: "request", Short: "Manage service requests"}
	req.AddCommand(requestCreateCmd())
	req.AddCommand(requestListCmd())
	req.AddCommand(requestShowCmd())
	req.AddCommand(requestSubmitCmd())
	req.AddCommand(requestAssignCmd())
	req.AddCommand(requestStatusCmd())
	req.AddCommand(requestRejectCmd())
	req.AddCommand(requestCompleteCmd())
	req.AddCommand(requestNoteCmd())
	req.AddCommand(requestNotesCmd())
	req.AddCommand(requestDocumentCmd())
	req.AddCommand(requestLogCmd())
	return req
}

func requestCreateCmd() *cobra.Command {
	var serviceID, profileID, priority, country, dataJSON string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a service request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := e.Create(ctx, lifecycle.CreateOptions{
					ServiceID:      serviceID,
					OrganizationID: e.Config.Organization.ID,
					ProfileID:      profileID,
					RequesterID:    viper.GetString("actor-id"),
					Priority:       priority,
					CountryCode:    country,
					DataJSON:       dataJSON,
					ActorID:        viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().StringVar(&serviceID, "service", "", "service id from the catalog")
	cmd.Flags().StringVar(&profileID, "profile", "", "profile id")
	cmd.Flags().StringVar(&priority, "priority", "", "low|normal|high|urgent")
	cmd.Flags().StringVar(&country, "country", "", "country code")
	cmd.Flags().StringVar(&dataJSON, "data-json", "", "opaque request data as JSON")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func requestListCmd() *cobra.Command {
	var f repo.RequestFilters
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				for _, s := range strings.Split(status, ",") {
					if s = strings.TrimSpace(s); s != "" {
						f.Statuses = append(f.Statuses, s)
					}
				}
				items, err := e.List(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Number", "Status", "Priority", "Service", "Agent", "Created"})
				for _, r := range items {
					agent := ""
					if r.AssignedAgentID != nil {
						agent = *r.AssignedAgentID
					}
					tw.AppendRow(table.Row{r.Number, r.Status, r.Priority, r.ServiceID, agent, r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "comma-separated status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.ServiceID, "service", "", "service filter")
	cmd.Flags().StringVar(&f.OrganizationID, "organization", "", "organization filter")
	cmd.Flags().StringVar(&f.ProfileID, "profile", "", "profile filter")
	cmd.Flags().StringVar(&f.AssignedAgentID, "agent", "", "assigned agent filter")
	cmd.Flags().StringVar(&f.CountryCode, "country", "", "country filter")
	cmd.Flags().StringVar(&f.CreatedFrom, "created-from", "", "created at or after (RFC3339)")
	cmd.Flags().StringVar(&f.CreatedTo, "created-to", "", "created at or before (RFC3339)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "page offset")
	return cmd
}

// resolveRequest accepts either a request id or a REQ- number.
func resolveRequest(ctx context.Context, e lifecycle.Engine, ref string) (domain.ServiceRequest, error) {
	if strings.HasPrefix(ref, "REQ-") {
		return e.GetByNumber(ctx, ref)
	}
	return e.Get(ctx, ref)
}

func requestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|number>",
		Short: "Show a service request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
}

func requestSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <id|number>",
		Short: "Submit a draft request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				r, err = e.Submit(ctx, r.ID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
}

func requestAssignCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "assign <id|number>",
		Short: "Assign a request to an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				r, err = e.Assign(ctx, r.ID, agentID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func requestStatusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <id|number> <new-status>",
		Short: "Change request status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				r, err = e.ChangeStatus(ctx, r.ID, args[1], viper.GetString("actor-id"), reason)
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the activity")
	return cmd
}

func requestRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id|number>",
		Short: "Reject a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				r, err = e.Reject(ctx, r.ID, viper.GetString("actor-id"), reason)
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func requestCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id|number>",
		Short: "Complete a validated request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				r, err = e.Complete(ctx, r.ID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
}

func requestNoteCmd() *cobra.Command {
	var noteType, content string
	cmd := &cobra.Command{
		Use:   "note <id|number>",
		Short: "Add a note to a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				n, err := e.AddNote(ctx, r.ID, noteType, content, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(n)
			})
		},
	}
	cmd.Flags().StringVar(&noteType, "type", "internal", "internal|citizen_visible")
	cmd.Flags().StringVar(&content, "content", "", "note content")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func requestNotesCmd() *cobra.Command {
	var citizenOnly bool
	cmd := &cobra.Command{
		Use:   "notes <id|number>",
		Short: "List notes on a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				notes, err := e.Notes(ctx, r.ID, citizenOnly)
				if err != nil {
					return err
				}
				return printJSON(notes)
			})
		},
	}
	cmd.Flags().BoolVar(&citizenOnly, "citizen-only", false, "only citizen-visible notes")
	return cmd
}

func requestDocumentCmd() *cobra.Command {
	doc := &cobra.Command{Use: "document", Short: "Manage request documents"}
	var add = func(attach bool) *cobra.Command {
		use, short := "add <id|number> <document-id>", "Attach a document"
		if !attach {
			use, short = "remove <id|number> <document-id>", "Detach a document"
		}
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
					r, err := resolveRequest(ctx, e, args[0])
					if err != nil {
						return err
					}
					if attach {
						r, err = e.AddDocument(ctx, r.ID, args[1], viper.GetString("actor-id"))
					} else {
						r, err = e.RemoveDocument(ctx, r.ID, args[1], viper.GetString("actor-id"))
					}
					if err != nil {
						return err
					}
					return printJSON(r)
				})
			},
		}
	}
	doc.AddCommand(add(true))
	doc.AddCommand(add(false))
	return doc
}

func requestLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <id|number>",
		Short: "Show the activity history of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				r, err := resolveRequest(ctx, e, args[0])
				if err != nil {
					return err
				}
				acts, err := e.History(ctx, r.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(acts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Actor", "TS", "Payload"})
				for _, a := range acts {
					tw.AppendRow(table.Row{a.ID, a.Type, a.ActorID, a.TS, a.Data})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func countsCmd() *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Request counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e lifecycle.Engine) error {
				counts, err := e.StatusCounts(ctx, orgID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				for _, status := range domain.Statuses() {
					if c, ok := counts[status]; ok {
						fmt.Printf("  %s: %d\n", status, c)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "organization", "", "organization scope")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyRevokeCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name, key string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if key == "" {
					return errors.New("--key required")
				}
				rec := domain.APIKey{
					ID:      fmt.Sprintf("key-%d", time.Now().UnixNano()),
					ActorID: actorID,
					Name:    name,
					KeyHash: repo.HashAPIKey(key),
				}
				if err := r.InsertAPIKey(ctx, nil, rec); err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&key, "key", "", "raw key value (stored hashed)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				return printJSON(keys)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var roles []string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("CONSULAIRE_JWT_SECRET")
			if secret == "" {
				return errors.New("CONSULAIRE_JWT_SECRET is required")
			}
			token, err := server.IssueToken(secret, viper.GetString("actor-id"), roles)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", []string{"agent"}, "role claim (repeatable)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := lifecycle.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CONSULAIRE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("CONSULAIRE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Consulaire API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, lifecycle.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := lifecycle.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

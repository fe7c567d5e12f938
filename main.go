package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskdesk-api/access"
	"taskdesk-api/api"
	"taskdesk-api/domain"
	"taskdesk-api/storage"
)

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, storage.Config{
		UsersTable:       envOr("USERS_TABLE", "users"),
		BoardsTable:      envOr("BOARDS_TABLE", "boards"),
		ColumnsTable:     envOr("COLUMNS_TABLE", "columns"),
		TasksTable:       envOr("TASKS_TABLE", "tasks"),
		DepartmentsTable: envOr("DEPARTMENTS_TABLE", "departments"),
		GroupsTable:      envOr("GROUPS_TABLE", "groups"),
		RoutingQueue:     envOr("ROUTING_QUEUE", "task-routing"),
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var st api.Storage = store
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		rc := redis.NewClient(redisOpts)
		ttl := 5 * time.Minute
		if v := os.Getenv("CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid CACHE_TTL: %v", err)
			}
			ttl = d
		}
		st = storage.NewCache(store, rc, ttl)
	}

	cfg, err := accessConfig()
	if err != nil {
		log.Fatalf("access config: %v", err)
	}

	localMode := os.Getenv("LOCAL_AUTH_MODE") != ""
	var auth *api.Auth
	if localMode {
		auth = api.NewAuth(nil, os.Getenv("JWT_AUDIENCE"), os.Getenv("JWT_ISSUER"))
	} else {
		jwtAudience := os.Getenv("JWT_AUDIENCE")
		domainName := os.Getenv("JWT_DOMAIN")
		if jwtAudience == "" || domainName == "" {
			log.Fatal("missing JWT config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domainName)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domainName+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
	}))
	e.Use(api.DecompressRequests())

	logger := log.New()
	api.Register(e, st, auth, cfg, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

type bypassEntry struct {
	Role         domain.Role `json:"role"`
	DepartmentID string      `json:"department_id"`
	Boards       []string    `json:"boards"`
}

// accessConfig starts from the shipped defaults and applies env overrides:
// ACCESS_BYPASS_TABLE is a JSON list of {role, department_id, boards} entries,
// ACCESS_ROUTING_TABLE a JSON object of column key to destination.
func accessConfig() (access.Config, error) {
	cfg := access.DefaultConfig()
	if raw := os.Getenv("ACCESS_BYPASS_TABLE"); raw != "" {
		var entries []bypassEntry
		if err := sonic.UnmarshalString(raw, &entries); err != nil {
			return access.Config{}, fmt.Errorf("ACCESS_BYPASS_TABLE: %w", err)
		}
		table := access.BypassTable{}
		for _, e := range entries {
			key := access.BypassKey{Role: e.Role, DepartmentID: e.DepartmentID}
			table[key] = append(table[key], e.Boards...)
		}
		cfg.Bypass = table
	}
	if raw := os.Getenv("ACCESS_ROUTING_TABLE"); raw != "" {
		var table access.RoutingTable
		if err := sonic.UnmarshalString(raw, &table); err != nil {
			return access.Config{}, fmt.Errorf("ACCESS_ROUTING_TABLE: %w", err)
		}
		cfg.Routing = table
	}
	if v := os.Getenv("TECH_BOARD_KEY"); v != "" {
		cfg.TechBoardKey = v
	}
	if v := os.Getenv("DESIGN_BOARD_KEY"); v != "" {
		cfg.DesignBoardKey = v
	}
	return cfg, nil
}

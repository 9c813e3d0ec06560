package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"interviewer/internal/artifact"
	"interviewer/internal/auth"
	"interviewer/internal/config"
	"interviewer/internal/database"
	"interviewer/internal/storage"
	"interviewer/internal/store"
	"interviewer/internal/tree"
)

const usage = `usage:
  admin audit [-snapshots] [-db-host H] [-db-port P] [-db-name N] [-db-user U] [-db-password W] [-db-sslmode M]
  admin token -owner ADDRESS [-ttl 72h] [-secret S]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "audit":
		err = runAudit(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// runAudit 校验全部节点的树结构约束，-snapshots 时再核对 content.json，发现违规时以状态码 1 退出。
func runAudit(args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dbHost := fs.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
	dbPort := fs.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
	dbName := fs.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
	dbUser := fs.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
	dbPass := fs.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
	sslMode := fs.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	snapshots := fs.Bool("snapshots", false, "同时核对对象存储中的 content.json（读 MINIO_* 环境变量）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		return fmt.Errorf("load database config: %w", err)
	}
	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st := store.New(db)
	nodes, err := st.AllNodes(ctx)
	if err != nil {
		return err
	}
	contents, err := st.ContentNodeIDs(ctx)
	if err != nil {
		return err
	}

	violations := tree.Audit(nodes, contents)
	if *snapshots {
		client, err := storage.NewClient(loadMinIOConfig())
		if err != nil {
			return fmt.Errorf("init storage client: %w", err)
		}
		drift, err := tree.AuditSnapshots(ctx, st, artifact.NewRepository(client, artifact.Options{}), nodes)
		if err != nil {
			return err
		}
		violations = append(violations, drift...)
	}
	fmt.Printf("已检查 %d 个节点，发现 %d 处违规\n", len(nodes), len(violations))
	for _, v := range violations {
		fmt.Println("  " + v.String())
	}
	if len(violations) > 0 {
		os.Exit(1)
	}
	return nil
}

// runToken 为运维人员签发访问令牌。
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	owner := fs.String("owner", "", "令牌所属地址（必填）")
	ttl := fs.Duration("ttl", 72*time.Hour, "令牌有效期")
	secret := fs.String("secret", "", "签名密钥（可选，默认读 JWT_SECRET）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*owner) == "" {
		return errors.New("missing required flag: -owner")
	}
	key := strings.TrimSpace(*secret)
	if key == "" {
		key = os.Getenv("JWT_SECRET")
	}

	svc, err := auth.NewAuthService(key, *ttl)
	if err != nil {
		return err
	}
	token, err := svc.IssueToken(*owner)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	pick := func(flagValue string, envs ...string) string {
		if v := strings.TrimSpace(flagValue); v != "" {
			return v
		}
		for _, env := range envs {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				return v
			}
		}
		return ""
	}

	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if port <= 0 {
		port = 5432
	}

	cfg := config.DatabaseConfig{
		Host:     pick(host, "DATABASE_HOST"),
		Port:     port,
		Name:     pick(name, "POSTGRES_DB"),
		User:     pick(user, "POSTGRES_USER"),
		Password: pick(password, "POSTGRES_PASSWORD"),
		SSLMode:  pick(sslmode, "DATABASE_SSLMODE"),
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	switch {
	case cfg.Name == "":
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	case cfg.User == "":
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	case cfg.Password == "":
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}
	return cfg, nil
}

func loadMinIOConfig() config.MinIOConfig {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	useSSL, _ := strconv.ParseBool(env("MINIO_USE_SSL", "false"))
	cfg := config.MinIOConfig{
		Endpoint:        env("MINIO_ENDPOINT", "localhost:9000"),
		PublicEndpoint:  env("MINIO_PUBLIC_ENDPOINT", ""),
		AccessKeyID:     env("MINIO_ACCESS_KEY_ID", ""),
		SecretAccessKey: env("MINIO_SECRET_ACCESS_KEY", ""),
		UseSSL:          useSSL,
		Bucket:          env("MINIO_BUCKET", "resumes"),
		Region:          env("MINIO_REGION", ""),
		BucketLookup:    env("MINIO_BUCKET_LOOKUP", "auto"),
	}
	if cfg.PublicEndpoint == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicEndpoint = scheme + "://" + cfg.Endpoint
	}
	return cfg
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
	// Do NOT block startup in init() waiting for DB; main() connects after the
	// HTTP server is listening.
}

// DatabaseDriver returns the configured driver ("mysql" unless DB_DRIVER=sqlite).
func DatabaseDriver() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("DB_DRIVER")), "sqlite") {
		return "sqlite"
	}
	return "mysql"
}

// ConnectDatabase connects using DB_DRIVER. MySQL is retried until it comes up,
// SQLite is opened once from SQLITE_PATH.
func ConnectDatabase() error {
	if DatabaseDriver() == "sqlite" {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "shifts.db"
		}
		return ConnectSQLite(path)
	}
	ConnectDatabaseWithRetry()
	return nil
}

// ConnectSQLite opens a local SQLite database and sets the global DB.
// Used for local development and tests; the connection pool is pinned to a
// single connection so transactions serialize the same way on every platform.
func ConnectSQLite(path string) error {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := gorm.Open(sqlite.Open(dsn), initConfig())
	if err != nil {
		return fmt.Errorf("open sqlite %q: %w", path, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.Use(NewTenantGuardPlugin()); err != nil {
		return err
	}
	db = conn
	return nil
}

// ConnectDatabaseWithRetry connects to MySQL and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	dsn := mysqlDriver.NewConfig()
	dsn.User = dbUser
	dsn.Passwd = dbPassword
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%s", dbHost, dbPort)
	dsn.DBName = dbName
	dsn.MultiStatements = true
	dsn.ParseTime = true

	// Cloud SQL: DB_HOST=/cloudsql/<CONNECTION_NAME> connects through the proxy socket.
	if strings.HasPrefix(dbHost, "/cloudsql/") {
		dsn.Net = "unix"
		dsn.Addr = dbHost
	}
	databaseConfig := dsn.FormatDSN()

	var attempt int
	for {
		attempt++
		var err error
		db, err = gorm.Open(mysql.Open(databaseConfig), initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 50)
				maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 25)
				connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second

				if maxOpen > 0 {
					sqlDB.SetMaxOpenConns(maxOpen)
				}
				if maxIdle >= 0 {
					sqlDB.SetMaxIdleConns(maxIdle)
				}
				if connMaxLife > 0 {
					sqlDB.SetConnMaxLifetime(connMaxLife)
				}
			}

			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			if pluginErr := db.Use(NewTenantGuardPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install tenant guard plugin: %v", pluginErr)
			}
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: &schema.NamingStrategy{SingularTable: false},
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

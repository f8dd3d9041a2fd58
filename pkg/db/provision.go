// Package db provisions databases on the managed MySQL master and holds the
// controller's own user database.
package db

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"osops-utils/pkg/discovery"
	"osops-utils/pkg/model"
)

const defaultMySQLPort = 3306

// Runner executes statements against one database server.
type Runner interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	// Count returns how many rows query yields.
	Count(ctx context.Context, query string, args ...interface{}) (int64, error)
	Close() error
}

// ConnectionResolver finds the database server for a vendor.
type ConnectionResolver interface {
	ResolveDatabaseConnection(ctx context.Context, vendor string) (*model.DatabaseConnection, error)
}

// Provisioner creates databases, users and indexes on the server the
// resolver points at.
type Provisioner struct {
	Resolver ConnectionResolver
	// Dial opens a runner on conn, selecting database when not empty.
	// Defaults to DialMySQL.
	Dial func(ctx context.Context, conn *model.DatabaseConnection, database string) (Runner, error)
	Log  logrus.FieldLogger
}

func (p *Provisioner) log() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

func (p *Provisioner) dial(ctx context.Context, conn *model.DatabaseConnection, database string) (Runner, error) {
	if p.Dial != nil {
		return p.Dial(ctx, conn, database)
	}
	return DialMySQL(ctx, conn, database)
}

func (p *Provisioner) connect(ctx context.Context, vendor string) (*model.DatabaseConnection, error) {
	conn, err := p.Resolver.ResolveDatabaseConnection(ctx, vendor)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("no %s server found", vendor)
	}
	return conn, nil
}

// CreateDBAndUser creates database db and a user with all privileges on it,
// reachable from any host. It returns the connection it used, or nil for
// vendors other than mysql.
func (p *Provisioner) CreateDBAndUser(ctx context.Context, vendor, db, user, password string) (*model.DatabaseConnection, error) {
	if vendor != discovery.VendorMySQL {
		return nil, nil
	}
	conn, err := p.connect(ctx, vendor)
	if err != nil {
		return nil, err
	}
	r, err := p.dial(ctx, conn, "")
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", conn.Host, err)
	}
	defer r.Close()

	account := quoteString(user) + "@'%'"
	stmts := []string{
		"CREATE DATABASE IF NOT EXISTS " + quoteIdent(db),
		"CREATE USER IF NOT EXISTS " + account + " IDENTIFIED BY " + quoteString(password),
		"GRANT ALL PRIVILEGES ON " + quoteIdent(db) + ".* TO " + account,
	}
	for _, stmt := range stmts {
		if err := r.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("provision %s for %s: %w", db, user, err)
		}
	}
	p.log().WithFields(logrus.Fields{"database": db, "user": user, "host": conn.Host}).Info("database provisioned")
	return conn, nil
}

// AddIndex creates index on table(column) in db unless an index of that name
// already exists. Vendors other than mysql are ignored.
func (p *Provisioner) AddIndex(ctx context.Context, vendor, db, index, table, column string) error {
	if vendor != discovery.VendorMySQL {
		return nil
	}
	conn, err := p.connect(ctx, vendor)
	if err != nil {
		return err
	}
	r, err := p.dial(ctx, conn, db)
	if err != nil {
		return fmt.Errorf("connect %s: %w", conn.Host, err)
	}
	defer r.Close()

	n, err := r.Count(ctx, "SHOW INDEX FROM "+quoteIdent(table)+" WHERE Key_name = ?", index)
	if err != nil {
		return fmt.Errorf("inspect indexes of %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quoteIdent(index), quoteIdent(table), quoteIdent(column))
	if err := r.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	p.log().WithFields(logrus.Fields{"database": db, "index": index}).Info("index added")
	return nil
}

// DialMySQL opens a gorm MySQL connection to conn.
func DialMySQL(_ context.Context, conn *model.DatabaseConnection, database string) (Runner, error) {
	port := conn.Port
	if port == 0 {
		port = defaultMySQLPort
	}
	cfg := gomysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(port))
	cfg.DBName = database
	cfg.ParseTime = true
	db, err := open(cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	return &gormRunner{db: db}, nil
}

type gormRunner struct {
	db *gorm.DB
}

func (g *gormRunner) Exec(ctx context.Context, query string, args ...interface{}) error {
	return g.db.WithContext(ctx).Exec(query, args...).Error
}

func (g *gormRunner) Count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	rows, err := g.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func (g *gormRunner) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func quoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

package repository

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var db *gorm.DB
var dbOnce sync.Once

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DatabaseName string `mapstructure:"database_name"`
}

func configFromEnv() DatabaseConfig {
	cfg := DatabaseConfig{
		Host:         "localhost",
		Port:         3306,
		Username:     "lms",
		Password:     "lms",
		DatabaseName: "lms",
	}
	if v := os.Getenv("LMS_DB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("LMS_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("LMS_DB_USER"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("LMS_DB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("LMS_DB_NAME"); v != "" {
		cfg.DatabaseName = v
	}
	return cfg
}

func InitDatabase() *gorm.DB {
	dbOnce.Do(
		func() {
			dbConfig := configFromEnv()
			dsn := fmt.Sprintf(
				"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				dbConfig.Username,
				dbConfig.Password,
				dbConfig.Host,
				dbConfig.Port,
				dbConfig.DatabaseName,
			)
			var err error
			db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
				//Logger: logger.Default.LogMode(logger.Info),
			})
			if err != nil {
				panic(fmt.Errorf("failed to connect database, error: %v", err))
			}
			if err = Migrate(db); err != nil {
				panic(fmt.Errorf("failed to migrate database, error: %v", err))
			}
		},
	)

	return db
}

// Migrate creates or updates the book and loan tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Book{}, &Loan{})
}

// TxI carries an open transaction out of a reservation so the caller can make
// further writes under the same lock and commit or roll back as one unit.
type TxI struct {
	DB  *gorm.DB
	Err error
}

// TxL is TxI for loan-row transitions: the loan is loaded and locked in DB.
type TxL struct {
	DB   *gorm.DB
	Loan Loan
	Err  error
}

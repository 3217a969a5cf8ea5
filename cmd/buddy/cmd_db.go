package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/config"
	"github.com/buddyengineerz/storefront/database/seeders"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/database"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/migration"
)

var (
	seedOnlyFlag   string
	testInsertKeep bool
)

// bootDB loads config and opens the database connection.
func bootDB() error {
	if err := config.Load(); err != nil {
		return err
	}
	logger.Boot()
	return database.Connect()
}

// buddy migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		n, err := migration.New(database.DB, os.Stdout).Run()
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Nothing to migrate.")
		}
		return nil
	},
}

// buddy migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		n, err := migration.New(database.DB, os.Stdout).Rollback()
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Nothing to rollback.")
		}
		return nil
	},
}

// buddy migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		rows, err := migration.New(database.DB, io.Discard).Status()
		if err != nil {
			return err
		}
		return printStatus(os.Stdout, rows)
	},
}

func printStatus(out io.Writer, rows []migration.Status) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RAN\tBATCH\tMIGRATION")
	for _, s := range rows {
		ran, batch := "No", "-"
		if s.Ran {
			ran, batch = "Yes", fmt.Sprint(s.Batch)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", ran, batch, s.Name)
	}
	return w.Flush()
}

// buddy seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		return seeders.RunAll(cmd.Context(), database.DB, os.Stdout, seedOnlyFlag)
	},
}

// buddy test:insert
var testInsertCmd = &cobra.Command{
	Use:   "test:insert",
	Short: "Insert a throwaway category and product to check database access",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		if err := testInsert(cmd.Context(), database.DB, os.Stdout, testInsertKeep); err != nil {
			msg, _ := apperr.Public(err)
			return fmt.Errorf("test insert failed: %s: %w", msg, err)
		}
		return nil
	},
}

var errDryRun = errors.New("dry run")

// testInsert writes one category and one product in a transaction and
// reports them. Unless keep is set the transaction is rolled back.
// Errors come back classified by apperr.FromDB.
func testInsert(ctx context.Context, db *gorm.DB, out io.Writer, keep bool) error {
	suffix := uuid.NewString()[:8]
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cat := models.Category{Name: "Test Category " + suffix, Slug: "test-category-" + suffix, IsActive: true}
		if err := tx.Create(&cat).Error; err != nil {
			return err
		}
		p := models.Product{
			Name:       "Test Product " + suffix,
			Slug:       "test-product-" + suffix,
			Price:      decimal.NewFromInt(1),
			Images:     []string{},
			Sizes:      []string{},
			Colors:     []string{},
			Tags:       []string{},
			CategoryID: &cat.ID,
			Gender:     models.GenderUnisex,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		fmt.Fprintf(out, "Inserted category %d (%s) and product %d (%s).\n", cat.ID, cat.Slug, p.ID, p.Slug)
		if !keep {
			return errDryRun
		}
		return nil
	})
	switch {
	case errors.Is(err, errDryRun):
		fmt.Fprintln(out, "Rolled back. Pass --keep to commit.")
		return nil
	case err != nil:
		return apperr.FromDB(err)
	}
	fmt.Fprintln(out, "Committed.")
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedOnlyFlag, "only", "", "Run a single seeder by name")
	testInsertCmd.Flags().BoolVar(&testInsertKeep, "keep", false, "Commit the inserted rows")
}

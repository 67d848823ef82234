// Package postgresdb provides a PostgreSQL-based implementation of the storage
// interface for persisting users and photo asset metadata.
// It supports transactional operations, soft deletion of assets,
// and the aggregate counts behind the stats endpoints.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

// PostgresDB is a PostgreSQL-backed implementation of the photoapp metadata
// storage. It handles all persistence operations via a database/sql connection
// using the pgx stdlib driver.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables resetting the database schema before migration.
// It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
// Optionally accepts initialization options, such as WithDBPreReset.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

// CreateUser inserts a new user record and returns the assigned id.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (email, lastname, firstname, bucketfolder, password_hash)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
		`,
		usr.Email,
		usr.LastName,
		usr.FirstName,
		usr.BucketFolder,
		usr.PasswordHash,
	)
	var userIDFromDB int64
	if err := row.Scan(&userIDFromDB); err != nil {
		return 0, err
	}

	return userIDFromDB, nil
}

// GetUserByID fetches a user by id.
// If the user does not exist, it returns a user with a zero ID field.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	if userID == 0 {
		return &user.User{ID: 0}, nil
	}

	row := database.QueryRowContext(
		ctx,
		`
			SELECT id, email, lastname, firstname, bucketfolder, password_hash, created_at
				FROM users
				WHERE id = $1
		`,
		userID,
	)

	return scanUser(row)
}

// GetUserByEmail fetches a user by email.
// If the user does not exist, it returns a user with a zero ID field.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`
			SELECT id, email, lastname, firstname, bucketfolder, password_hash, created_at
				FROM users
				WHERE email = $1
		`,
		email,
	)

	return scanUser(row)
}

// GetUsers retrieves all users in descending order by user id.
func (db *PostgresDB) GetUsers(ctx context.Context) (models.Users, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, email, firstname, lastname, bucketfolder
				FROM users
				ORDER BY id DESC
		`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := models.Users{}
	for rows.Next() {
		var usr models.UserInfo
		err = rows.Scan(&usr.UserID, &usr.Email, &usr.FirstName, &usr.LastName, &usr.BucketFolder)
		if err != nil {
			return nil, err
		}

		result = append(result, usr)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateAsset inserts a new asset metadata row and returns the assigned id.
func (db *PostgresDB) CreateAsset(ctx context.Context, asset *models.Asset, transaction *sql.Tx) (int64, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`
			INSERT INTO assets (user_id, assetname, bucketkey, content_type, size, width, height)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id
		`,
		asset.UserID,
		asset.AssetName,
		asset.BucketKey,
		asset.ContentType,
		asset.Size,
		asset.Width,
		asset.Height,
	)
	var assetIDFromDB int64
	if err := row.Scan(&assetIDFromDB); err != nil {
		return 0, err
	}

	return assetIDFromDB, nil
}

// GetAssetByID retrieves a single asset by id.
// A missing row maps to models.ErrNoSuchAsset; a soft-deleted row is returned
// together with models.ErrAssetDeleted.
func (db *PostgresDB) GetAssetByID(ctx context.Context, assetID int64) (*models.Asset, error) {
	row := db.database.QueryRowContext(
		ctx,
		assetSelect+` WHERE id = $1`,
		assetID,
	)

	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNoSuchAsset
		}

		return nil, err
	}

	if asset.IsDeleted {
		return asset, models.ErrAssetDeleted
	}

	return asset, nil
}

// GetAssets retrieves all live assets in descending order by asset id.
func (db *PostgresDB) GetAssets(ctx context.Context) (models.Assets, error) {
	rows, err := db.database.QueryContext(
		ctx,
		assetSelect+` WHERE NOT is_deleted ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssets(rows)
}

// GetUserAssets retrieves all live assets of the given user
// in descending order by asset id.
func (db *PostgresDB) GetUserAssets(ctx context.Context, userID int64) (models.Assets, error) {
	rows, err := db.database.QueryContext(
		ctx,
		assetSelect+` WHERE user_id = $1 AND NOT is_deleted ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssets(rows)
}

// GetAssetsForUser retrieves the subset of the given asset ids that are live
// and owned by the given user. Ids that do not match are omitted.
func (db *PostgresDB) GetAssetsForUser(ctx context.Context, userID int64, assetIDs []int64) (models.Assets, error) {
	if len(assetIDs) == 0 {
		return models.Assets{}, nil
	}

	placeholders := make([]string, len(assetIDs))
	queryParams := make([]interface{}, 0, len(assetIDs)+1)
	queryParams = append(queryParams, userID)
	for i, assetID := range assetIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		queryParams = append(queryParams, assetID)
	}

	rows, err := db.database.QueryContext(
		ctx,
		fmt.Sprintf(
			assetSelect+` WHERE user_id = $1 AND NOT is_deleted AND id IN (%s)`,
			strings.Join(placeholders, ","),
		),
		queryParams...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssets(rows)
}

// MarkAssetsDeleted soft-deletes a batch of assets per user id.
// It executes the updates within a transaction to ensure consistency.
func (db *PostgresDB) MarkAssetsDeleted(
	ctx context.Context,
	usersAssets map[int64][]int64,
) error {
	transaction, err := db.database.Begin()
	if err != nil {
		return err
	}

	for userID, assetIDs := range usersAssets {
		for _, assetID := range assetIDs {
			_, err := transaction.ExecContext(
				ctx,
				`
					UPDATE assets
						SET is_deleted = true
						WHERE user_id = $1
							AND id = $2
				`,
				userID,
				assetID,
			)
			if err != nil {
				err2 := transaction.Rollback()
				if err2 != nil {
					return err2
				}
				return err
			}
		}
	}

	return transaction.Commit()
}

// GetNumberOfUsers returns the total number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

// GetNumberOfAssets returns the number of live assets.
func (db *PostgresDB) GetNumberOfAssets(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM assets WHERE NOT is_deleted`)
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

const assetSelect = `
	SELECT id, user_id, assetname, bucketkey, content_type, size, width, height, is_deleted, created_at
		FROM assets`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var usr user.User
	err := row.Scan(
		&usr.ID,
		&usr.Email,
		&usr.LastName,
		&usr.FirstName,
		&usr.BucketFolder,
		&usr.PasswordHash,
		&usr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &user.User{ID: 0}, nil
		}

		return &user.User{ID: 0}, err
	}

	return &usr, nil
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var asset models.Asset
	err := row.Scan(
		&asset.ID,
		&asset.UserID,
		&asset.AssetName,
		&asset.BucketKey,
		&asset.ContentType,
		&asset.Size,
		&asset.Width,
		&asset.Height,
		&asset.IsDeleted,
		&asset.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &asset, nil
}

func scanAssets(rows *sql.Rows) (models.Assets, error) {
	result := models.Assets{}
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, *asset)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	row := db.database.QueryRowContext(ctx, query)

	var count int64
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, err
	}

	return count, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

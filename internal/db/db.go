package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		username VARCHAR(50) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		profile_image_url TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_id VARCHAR(255) UNIQUE NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token_id ON refresh_tokens(token_id);

	CREATE TABLE IF NOT EXISTS user_details (
		id UUID PRIMARY KEY,
		user_id UUID UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		age INTEGER NOT NULL,
		gender VARCHAR(50),
		location_long VARCHAR(50),
		location_lat VARCHAR(50)
	);

	CREATE TABLE IF NOT EXISTS body_measurements (
		id UUID PRIMARY KEY,
		user_details_id UUID UNIQUE NOT NULL REFERENCES user_details(id) ON DELETE CASCADE,
		height DOUBLE PRECISION NOT NULL,
		weight DOUBLE PRECISION NOT NULL,
		body_type VARCHAR(50)
	);

	CREATE TABLE IF NOT EXISTS style_preferences (
		id UUID PRIMARY KEY,
		user_details_id UUID UNIQUE NOT NULL REFERENCES user_details(id) ON DELETE CASCADE,
		favorite_colors TEXT[] NOT NULL DEFAULT '{}',
		preferred_brands TEXT[] NOT NULL DEFAULT '{}',
		lifestyle_choices TEXT[] NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS budgets (
		id UUID PRIMARY KEY,
		style_preferences_id UUID UNIQUE NOT NULL REFERENCES style_preferences(id) ON DELETE CASCADE,
		min_amount DOUBLE PRECISION NOT NULL,
		max_amount DOUBLE PRECISION NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shopping_habits (
		id UUID PRIMARY KEY,
		style_preferences_id UUID UNIQUE NOT NULL REFERENCES style_preferences(id) ON DELETE CASCADE,
		frequency VARCHAR(50) NOT NULL,
		preferred_retailers TEXT[] NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS user_preferences (
		id UUID PRIMARY KEY,
		user_id UUID UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		receive_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		allow_data_sharing BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS items (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		colors TEXT[] NOT NULL DEFAULT '{}',
		brand VARCHAR(255),
		category VARCHAR(20) NOT NULL,
		is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
		price DOUBLE PRECISION,
		notes TEXT,
		size VARCHAR(50),
		image_url TEXT,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_items_user_id ON items(user_id);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);

	CREATE TABLE IF NOT EXISTS tags (
		id UUID PRIMARY KEY,
		name VARCHAR(100) UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS item_tags (
		item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (item_id, tag_id)
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

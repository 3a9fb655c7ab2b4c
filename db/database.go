package db

import (
	"database/sql"
	"fmt"
	"log"

	"TuneBay/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
// Cascade rules: deleting a track removes its download record, likes and
// playlist associations.
func InitDB() error {
	if err := createTracksTable(); err != nil {
		return err
	}
	if err := createDownloadsTable(); err != nil {
		return err
	}
	if err := createDownloadJobsTable(); err != nil {
		return err
	}
	if err := createLikesTable(); err != nil {
		return err
	}
	if err := createPlaylistTables(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createTracksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255),
		duration DOUBLE,
		custom_title VARCHAR(255),
		custom_artist VARCHAR(255),
		source_url VARCHAR(767),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	log.Println("Tracks table initialized successfully (or already exists).")
	return nil
}

func createDownloadsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS downloads (
		track_id VARCHAR(64) PRIMARY KEY,
		blob_path VARCHAR(767) NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		content_type VARCHAR(100),
		downloaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_downloads_track FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create downloads table: %w", err)
	}
	log.Println("Downloads table initialized successfully (or already exists).")
	return nil
}

func createDownloadJobsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS download_jobs (
		id VARCHAR(36) PRIMARY KEY,
		locator VARCHAR(767) NOT NULL,
		title_hint VARCHAR(255),
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		claim_token VARCHAR(36),
		track_id VARCHAR(64),
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_jobs_status_created (status, created_at),
		INDEX idx_jobs_claim_token (claim_token)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create download_jobs table: %w", err)
	}
	log.Println("Download jobs table initialized successfully (or already exists).")
	return nil
}

func createLikesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS likes (
		track_id VARCHAR(64) PRIMARY KEY,
		liked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_likes_track FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create likes table: %w", err)
	}
	log.Println("Likes table initialized successfully (or already exists).")
	return nil
}

func createPlaylistTables() error {
	playlists := `
	CREATE TABLE IF NOT EXISTS playlists (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := DB.Exec(playlists); err != nil {
		return fmt.Errorf("failed to create playlists table: %w", err)
	}

	playlistTracks := `
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id BIGINT NOT NULL,
		track_id VARCHAR(64) NOT NULL,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (playlist_id, track_id),
		CONSTRAINT fk_pt_playlist FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		CONSTRAINT fk_pt_track FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	);
	`
	if _, err := DB.Exec(playlistTracks); err != nil {
		return fmt.Errorf("failed to create playlist_tracks table: %w", err)
	}

	log.Println("Playlist tables initialized successfully (or already exist).")
	return nil
}

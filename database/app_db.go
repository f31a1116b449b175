package database

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq"
)

var AppDB *sql.DB

// Inisialisasi koneksi ke database custom (bukan whatsmeow)
func InitAppDB(appDbURL string) *sql.DB {
	db, err := sql.Open("postgres", appDbURL)
	if err != nil {
		log.Fatal("Failed to connect app DB:", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping app DB:", err)
	}
	AppDB = db
	log.Println("App DB (custom) connected successfully")
	return db
}

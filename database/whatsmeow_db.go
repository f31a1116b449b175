package database

import (
	"context"
	"log"

	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

var WhatsmeowContainer *sqlstore.Container

// Inisialisasi store credential whatsmeow (device, keys, pairing).
func InitWhatsmeow(ctx context.Context, dbURL string) *sqlstore.Container {
	dbLog := waLog.Stdout("Database", "INFO", true)
	container, err := sqlstore.New(ctx, "postgres", dbURL, dbLog)
	if err != nil {
		log.Fatal("Failed to connect whatsmeow DB:", err)
	}
	WhatsmeowContainer = container
	log.Println("Whatsmeow DB connected successfully")
	return container
}

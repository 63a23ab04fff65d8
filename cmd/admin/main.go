package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"chatroom/backend/internal/config"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/directory"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/presence"
	"chatroom/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <create-room|list-rooms|set-online> [args]")
		os.Exit(1)
	}

	cfg := config.Load()
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// Redis is optional here: without it writes still land, but open rooms
	// only see them on their next change notification.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("WARNING: Redis unavailable, change notifications disabled: %v", err)
			rdb = nil
		}
	}

	storageSvc := storage.NewStorageService(db, rdb)
	if err := storageSvc.Migrate(false); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "create-room":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin create-room <room_id> [display_name]")
			os.Exit(1)
		}
		name := os.Args[2]
		if len(os.Args) > 3 {
			name = os.Args[3]
		}
		if err := createRoom(ctx, storageSvc, os.Args[2], name); err != nil {
			log.Fatalf("Error creating room: %v", err)
		}
		fmt.Printf("Room %s has been created.\n", os.Args[2])
	case "list-rooms":
		if err := listRooms(ctx, storageSvc, os.Stdout); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	case "set-online":
		if len(os.Args) != 5 {
			fmt.Println("Usage: admin set-online <room_id> <user_id> <true|false>")
			os.Exit(1)
		}
		online, err := strconv.ParseBool(os.Args[4])
		if err != nil {
			fmt.Println("Invalid value. Please provide true or false.")
			os.Exit(1)
		}
		if err := presence.NewWriter(storageSvc, nil).SetOnline(ctx, os.Args[2], os.Args[3], online); err != nil {
			log.Fatalf("Error setting presence: %v", err)
		}
		fmt.Printf("User %s is now online=%t in %s.\n", os.Args[3], online, os.Args[2])
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func createRoom(ctx context.Context, s storage.DocumentStore, roomID, name string) error {
	return s.SetData(ctx, config.RoomPath(roomID), models.Document{"name": name}, true)
}

func listRooms(ctx context.Context, s storage.DocumentStore, out io.Writer) error {
	docs, err := s.Query(ctx, directory.RoomsQuery())
	if err != nil {
		return err
	}
	dir := directory.New(decoder.New(time.Now), "-")
	for _, err := range dir.Ingest(docs) {
		log.Printf("WARNING: %v", err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tNAME\tLAST MESSAGE\tAT")
	for _, room := range dir.View().Rooms {
		at := "-"
		if room.HasMessages {
			at = room.LastMessageAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", room.RoomID, room.DisplayName, room.LastMessage, at)
	}
	return w.Flush()
}

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"coartistry-backend/internal/database"
)

// expected 테이블별 필수 컬럼
var expected = map[string][]string{
	"users": {"id", "username", "password_hash", "created_at"},
	"rooms": {"id", "room_id", "creator_id", "created_at"},
}

func main() {
	// .env 파일은 선택
	_ = godotenv.Load()

	db, err := gorm.Open(postgres.Open(database.LoadConfig().DSN()), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	fmt.Println("✅ Connected to database")
	fmt.Println()

	missing := 0
	for _, table := range []string{"users", "rooms"} {
		var columns []string
		query := `
			SELECT column_name
			FROM information_schema.columns
			WHERE table_name = ?
		`
		if err := db.Raw(query, table).Scan(&columns).Error; err != nil {
			log.Fatalf("Failed to read columns of %s: %v", table, err)
		}

		have := make(map[string]bool, len(columns))
		for _, c := range columns {
			have[c] = true
		}
		fmt.Printf("📋 %s (%d columns)\n", table, len(columns))
		for _, c := range expected[table] {
			if have[c] {
				fmt.Printf("  - %s ✅\n", c)
			} else {
				fmt.Printf("  - %s ❌ missing\n", c)
				missing++
			}
		}
		fmt.Println()
	}

	// room_id 유니크 인덱스 확인 (방 ID 중복 방지)
	var unique bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM pg_indexes
			WHERE tablename = 'rooms'
			AND indexdef ILIKE 'CREATE UNIQUE INDEX%(room_id)%'
		)
	`
	if err := db.Raw(query).Scan(&unique).Error; err != nil {
		log.Fatal("Failed to check room_id index:", err)
	}
	fmt.Printf("🔑 Unique index on rooms.room_id: %v\n", unique)
	fmt.Println()

	if missing > 0 || !unique {
		fmt.Println("⚠️  Schema incomplete. Start the server once to run the migration.")
		return
	}

	type StatusStats struct {
		Users int64
		Rooms int64
	}
	var stats StatusStats
	query = `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM rooms) AS rooms
	`
	if err := db.Raw(query).Scan(&stats).Error; err != nil {
		log.Fatal("Failed to get statistics:", err)
	}
	fmt.Println("📈 Statistics:")
	fmt.Printf("  - Users: %d\n", stats.Users)
	fmt.Printf("  - Rooms: %d\n", stats.Rooms)
	fmt.Println()

	type RoomInfo struct {
		RoomID    string
		Creator   string
		CreatedAt time.Time
	}
	var rooms []RoomInfo
	query = `
		SELECT r.room_id, u.username AS creator, r.created_at
		FROM rooms r
		LEFT JOIN users u ON u.id = r.creator_id
		ORDER BY r.id DESC
		LIMIT 10
	`
	if err := db.Raw(query).Scan(&rooms).Error; err != nil {
		log.Fatal("Failed to get recent rooms:", err)
	}

	fmt.Println("🎨 Recent Rooms (last 10):")
	for _, r := range rooms {
		fmt.Printf("  - %s by %s at %s\n", r.RoomID, r.Creator, r.CreatedAt.Format(time.RFC3339))
	}
}

// Seeds the development database: one doctor, one patient, and weekday
// availability windows. Safe to run repeatedly.
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	var doctorID int64
	err = pool.QueryRow(ctx, `
		INSERT INTO doctors (name, email, specialty)
		VALUES ('Dr. Ahuja', 'ahuja@example.com', 'General Physician')
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`).Scan(&doctorID)
	if err != nil {
		log.Fatalf("seed doctor: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO patients (name, email, primary_condition)
		VALUES ('John Doe', 'john@example.com', 'fever')
		ON CONFLICT (email) DO NOTHING
	`)
	if err != nil {
		log.Fatalf("seed patient: %v", err)
	}

	// Monday through Friday, mornings 9-12 and afternoons 14-17.
	for day := 0; day < 5; day++ {
		for _, window := range [][2]string{{"09:00", "12:00"}, {"14:00", "17:00"}} {
			_, err = pool.Exec(ctx, `
				INSERT INTO doctor_availability (doctor_id, day_of_week, start_time, end_time)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT ON CONSTRAINT uix_doctor_slot DO NOTHING
			`, doctorID, day, window[0], window[1])
			if err != nil {
				log.Fatalf("seed availability day %d: %v", day, err)
			}
		}
	}

	log.Println("seed complete")
}

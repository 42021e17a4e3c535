// campaignctl creates campaigns and lists a user's campaigns from the
// command line. Campaign CRUD has no public HTTP surface; this is the
// operator path.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ignite/attribution/internal/campaigns"
	"github.com/ignite/attribution/internal/config"
	"github.com/ignite/attribution/internal/repository/postgres"

	_ "github.com/lib/pq"
)

func main() {
	var (
		userID  = flag.Int64("user", 0, "owning user id")
		name    = flag.String("name", "", "campaign name (create)")
		channel = flag.String("channel", "", "2-letter channel code (create)")
		origin  = flag.String("origin", "", "allowed origin (optional)")
		list    = flag.Bool("list", false, "list the user's campaigns instead of creating")
	)
	flag.Parse()

	if *userID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	svc := campaigns.NewService(postgres.NewCampaignRepo(db))

	if *list {
		rows, err := svc.ListByUser(ctx, *userID)
		if err != nil {
			log.Fatalf("list campaigns: %v", err)
		}
		for _, c := range rows {
			active := "inactive"
			if c.Active {
				active = "active"
			}
			fmt.Printf("%d\t%s\t%s\t%s\t%s\n", c.ID, c.Code, c.Name, active, c.CreatedAt.Format("2006-01-02"))
		}
		return
	}

	if *name == "" || *channel == "" {
		flag.Usage()
		os.Exit(2)
	}

	c, err := svc.Create(ctx, campaigns.CreateInput{
		UserID:        *userID,
		Name:          *name,
		ChannelCode:   *channel,
		AllowedOrigin: *origin,
	})
	if err != nil {
		log.Fatalf("create campaign: %v", err)
	}
	fmt.Printf("created campaign %d with code %s\n", c.ID, c.Code)
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	_ "github.com/go-sql-driver/mysql"
)

// Seeds the products table with a small dev catalog. Assumes schema.sql has
// been applied.
func main() {
	dsn := flag.String("dsn", "root:root@tcp(localhost:3306)/storefront?parseTime=true", "mysql dsn")
	flag.Parse()

	db, err := sql.Open("mysql", *dsn)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	products := []struct {
		id    int64
		name  string
		image string
		price string
		stock int
	}{
		{1, "Ceramic Mug", "/images/mug.jpg", "350.00", 40},
		{2, "Linen Tote Bag", "/images/tote.jpg", "850.00", 10},
		{3, "Walnut Desk Organizer", "/images/organizer.jpg", "1800.00", 2},
		{4, "Brass Desk Lamp", "/images/lamp.jpg", "2400.00", 15},
	}

	for _, p := range products {
		_, err := db.ExecContext(ctx, `
			INSERT INTO products (id, name, image, price, stock)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE name = VALUES(name), image = VALUES(image),
				price = VALUES(price), stock = VALUES(stock)`,
			p.id, p.name, p.image, p.price, p.stock,
		)
		if err != nil {
			log.Fatalf("failed to seed product %d: %v", p.id, err)
		}
		log.Printf("seeded product %d: %s (stock %d)", p.id, p.name, p.stock)
	}
}

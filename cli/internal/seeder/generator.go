// Package seeder fabricates realistic marketplace payloads for load and
// demo seeding against the sync relay.
package seeder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var eventTypes = []string{"view", "search", "add_to_cart", "favorite", "share"}

var orderStatuses = []string{"pending", "paid", "shipped", "delivered", "cancelled"}

var regions = []string{
	"Darjeeling", "Banaras", "Kanchipuram", "Pochampally",
	"Mysore", "Channapatna", "Moradabad", "Kutch",
}

// GenerateEvent fabricates one storefront activity event. Events are spread
// backwards from now across timeSpread with jitter, so seeded data has a
// plausible time distribution.
func GenerateEvent(index, totalCount int, timeSpread time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"event_id":    gofakeit.UUID(),
		"event_type":  eventTypes[rand.Intn(len(eventTypes))],
		"vendor_id":   vendorID(),
		"occurred_at": spreadTime(index, totalCount, timeSpread).Format(time.RFC3339),
	}
}

// GenerateOrder fabricates one completed order.
func GenerateOrder(index, totalCount int, timeSpread time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"vendor_id":  vendorID(),
		"order_id":   gofakeit.UUID(),
		"product_id": fmt.Sprintf("prod-%04d", rand.Intn(1000)),
		"amount":     gofakeit.Price(150, 25000),
		"status":     orderStatuses[rand.Intn(len(orderStatuses))],
		"region":     regions[rand.Intn(len(regions))],
		"timestamp":  spreadTime(index, totalCount, timeSpread).Format(time.RFC3339),
	}
}

func vendorID() string {
	return fmt.Sprintf("vendor-%03d", rand.Intn(50))
}

func spreadTime(index, totalCount int, timeSpread time.Duration) time.Time {
	now := time.Now().UTC()
	if timeSpread <= 0 || totalCount <= 0 {
		return now
	}

	baseInterval := float64(timeSpread) / float64(totalCount)
	offset := time.Duration(float64(index) * baseInterval)

	// ±40% jitter around the even spacing
	jitter := time.Duration((rand.Float64()*2.0 - 1.0) * baseInterval * 0.4)
	offset += jitter
	if offset < 0 {
		offset = 0
	}
	if offset > timeSpread {
		offset = timeSpread
	}

	return now.Add(-(timeSpread - offset))
}

package models

import "time"

// InventoryReport is a point-in-time snapshot of the marketplace inventory.
type InventoryReport struct {
	GeneratedAt       time.Time      `bson:"generated_at" json:"generated_at"`
	TotalListings     int            `bson:"total_listings" json:"total_listings"`
	ActiveListings    int            `bson:"active_listings" json:"active_listings"`
	TotalQuantity     float64        `bson:"total_quantity" json:"total_quantity"`
	AvailableQuantity float64        `bson:"available_quantity" json:"available_quantity"`
	InventoryValue    float64        `bson:"inventory_value" json:"inventory_value"`
	OrganicListings   int            `bson:"organic_listings" json:"organic_listings"`
	OrganicShare      float64        `bson:"organic_share" json:"organic_share"`
	AveragePrice      float64        `bson:"average_price" json:"average_price"`
	MinPrice          float64        `bson:"min_price" json:"min_price"`
	MaxPrice          float64        `bson:"max_price" json:"max_price"`
	GrainTypes        []string       `bson:"grain_types" json:"grain_types"`
	ByStatus          map[string]int `bson:"by_status" json:"by_status"`
}

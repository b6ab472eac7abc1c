package models

// EventRequest is a storefront activity event forwarded to the warehouse.
type EventRequest struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	VendorID   string `json:"vendor_id"`
	OccurredAt string `json:"occurred_at"`
}

// OrderRequest is a completed order forwarded to the warehouse.
type OrderRequest struct {
	VendorID  string   `json:"vendor_id"`
	OrderID   string   `json:"order_id"`
	ProductID string   `json:"product_id"`
	Amount    *float64 `json:"amount"`
	Status    string   `json:"status"`
	Region    string   `json:"region"`
	Timestamp string   `json:"timestamp"`
}

// ProductRequest is a product listing forwarded to the warehouse. Only
// vendor_id and name are required; the rest default per the product schema.
type ProductRequest struct {
	VendorID         string   `json:"vendor_id"`
	Name             string   `json:"name"`
	Description      *string  `json:"description"`
	Price            *float64 `json:"price"`
	Stock            *int     `json:"stock"`
	Region           *string  `json:"region"`
	Location         *string  `json:"location"`
	Category         *string  `json:"category"`
	MakerID          *string  `json:"maker_id"`
	GICertificateURL *string  `json:"gi_certificate_url"`
	GeneratedImages  []string `json:"generated_images"`
}

// AnalyticsRequest selects the window and vendor for the analytics queries.
type AnalyticsRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	VendorID  string `json:"vendor_id"`
}

// AnalyticsResponse aggregates the four read-only warehouse queries. Values
// are string-typed as returned by the warehouse; clients coerce as needed.
type AnalyticsResponse struct {
	SalesSummary         []map[string]string `json:"sales_summary"`
	TopProducts          []map[string]string `json:"top_products"`
	OrderStatusBreakdown []map[string]string `json:"order_status_breakdown"`
	RegionalSales        []map[string]string `json:"regional_sales"`
}

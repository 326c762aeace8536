package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type AdminCredential struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ContactMessage struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	InquiryType string
	Message     string
	IPAddress   string
	CreatedAt   time.Time
}

type NewsletterSubscriber struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

type Testimonial struct {
	ID         string
	ProductID  string
	UserName   string
	Rating     int
	Review     string
	ReviewDate string
	ImageURL   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Product struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Category    string
	ProductType string
	SkinConcern string
	SKU         string
	Stock       int
	Images      []string
	Ingredients []string
	Sizes       []string
	Application string
	Warning     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderPaid       OrderStatus = "PAID"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// OrderStatuses lists every status an order can be moved to.
var OrderStatuses = []OrderStatus{OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type Order struct {
	ID              string
	Email           string
	CustomerName    string
	Items           []OrderItem
	Total           float64
	Status          OrderStatus
	ShippingAddress *Address
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateAdminCredentialParams struct {
	Email        string
	PasswordHash string
}

type CreateContactMessageParams struct {
	Name        string
	Email       string
	Phone       string
	InquiryType string
	Message     string
	IPAddress   string
}

type CreateTestimonialParams struct {
	ProductID  string
	UserName   string
	Rating     int
	Review     string
	ReviewDate string
	ImageURL   string
}

type CreateProductParams struct {
	Title       string
	Description string
	Price       float64
	Category    string
	ProductType string
	SkinConcern string
	SKU         string
	Stock       int
	Images      []string
	Ingredients []string
	Sizes       []string
	Application string
	Warning     string
}

// ProductFilter narrows a catalog listing. Empty fields match everything;
// Search is a case-insensitive substring of the title or description.
type ProductFilter struct {
	Search      string
	Category    string
	SkinConcern string
	ProductType string
	Offset      int
	Limit       int
}

type CreateOrderParams struct {
	Email           string
	CustomerName    string
	Items           []OrderItem
	Total           float64
	ShippingAddress *Address
}

// OrderFilter selects orders created at or after Since (zero means all).
type OrderFilter struct {
	Since  time.Time
	Offset int
	Limit  int
}

// UpdateTestimonialParams carries a partial update; nil fields are left
// unchanged. An empty ImageURL clears the image.
type UpdateTestimonialParams struct {
	ProductID  *string
	UserName   *string
	Rating     *int
	Review     *string
	ReviewDate *string
	ImageURL   *string
}

func (p UpdateTestimonialParams) Empty() bool {
	return p.ProductID == nil && p.UserName == nil && p.Rating == nil &&
		p.Review == nil && p.ReviewDate == nil && p.ImageURL == nil
}

// Apply copies the set fields onto t.
func (p UpdateTestimonialParams) Apply(t Testimonial) Testimonial {
	if p.ProductID != nil {
		t.ProductID = *p.ProductID
	}
	if p.UserName != nil {
		t.UserName = *p.UserName
	}
	if p.Rating != nil {
		t.Rating = *p.Rating
	}
	if p.Review != nil {
		t.Review = *p.Review
	}
	if p.ReviewDate != nil {
		t.ReviewDate = *p.ReviewDate
	}
	if p.ImageURL != nil {
		t.ImageURL = *p.ImageURL
	}
	return t
}

// Primary is the persistent backend for the storefront's server-side records.
// Values handed to it are already sanitized; stores only normalize keys.
type Primary interface {
	CreateAdminCredential(ctx context.Context, params CreateAdminCredentialParams) (AdminCredential, error)
	FindAdminCredentialByEmail(ctx context.Context, email string) (AdminCredential, error)

	CreateContactMessage(ctx context.Context, params CreateContactMessageParams) (ContactMessage, error)
	// ListContactMessages returns newest first; limit <= 0 means no limit.
	ListContactMessages(ctx context.Context, limit int) ([]ContactMessage, error)

	CreateNewsletterSubscriber(ctx context.Context, email string) (NewsletterSubscriber, error)

	CreateTestimonial(ctx context.Context, params CreateTestimonialParams) (Testimonial, error)
	FindTestimonialByID(ctx context.Context, id string) (Testimonial, error)
	ListTestimonials(ctx context.Context) ([]Testimonial, error)
	ListTestimonialsByProduct(ctx context.Context, productID string) ([]Testimonial, error)
	UpdateTestimonial(ctx context.Context, id string, params UpdateTestimonialParams) (Testimonial, error)
	DeleteTestimonial(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, params CreateProductParams) (Product, error)
	FindProductByID(ctx context.Context, id string) (Product, error)
	// ListProducts returns one page, newest first, and the total match count.
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)

	// CreateOrder stores a new order as PENDING.
	CreateOrder(ctx context.Context, params CreateOrderParams) (Order, error)
	FindOrderByID(ctx context.Context, id string) (Order, error)
	// ListOrders returns one page, newest first, and the total match count.
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error)
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
}

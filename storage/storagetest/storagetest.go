// Package storagetest holds the behavioural checks every storage.Primary
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SnowzyTech/regime/storage"
)

// Run exercises store end to end. Records are keyed with a per-run seed so
// the suite can share a database with other runs.
func Run(t *testing.T, store storage.Primary) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	seed := time.Now().UTC().UnixNano()

	t.Run("admin credentials", func(t *testing.T) {
		email := fmt.Sprintf("Admin-%d@Regime.example", seed)
		cred, err := store.CreateAdminCredential(ctx, storage.CreateAdminCredentialParams{
			Email:        email,
			PasswordHash: "salt:100000:key",
		})
		if err != nil {
			t.Fatalf("create admin credential: %v", err)
		}
		if _, err := uuid.Parse(cred.ID); err != nil {
			t.Fatalf("expected uuid id, got %q", cred.ID)
		}

		found, err := store.FindAdminCredentialByEmail(ctx, "  "+email+" ")
		if err != nil {
			t.Fatalf("find admin credential: %v", err)
		}
		if found.ID != cred.ID || found.PasswordHash != "salt:100000:key" {
			t.Fatalf("unexpected credential %+v", found)
		}

		if _, err := store.CreateAdminCredential(ctx, storage.CreateAdminCredentialParams{Email: email, PasswordHash: "x"}); !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("expected duplicate credential to fail, got %v", err)
		}
		if _, err := store.FindAdminCredentialByEmail(ctx, "missing-"+email); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("contact messages", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := store.CreateContactMessage(ctx, storage.CreateContactMessageParams{
				Name:        fmt.Sprintf("Customer %d", i),
				Email:       fmt.Sprintf("customer-%d-%d@example.com", seed, i),
				Phone:       "+234 800 000",
				InquiryType: "orders",
				Message:     "Where is my order please?",
				IPAddress:   "1.2.3.4",
			})
			if err != nil {
				t.Fatalf("create contact message: %v", err)
			}
			time.Sleep(2 * time.Millisecond)
		}

		latest, err := store.ListContactMessages(ctx, 2)
		if err != nil {
			t.Fatalf("list contact messages: %v", err)
		}
		if len(latest) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(latest))
		}
		if latest[0].Name != "Customer 2" || latest[1].Name != "Customer 1" {
			t.Fatalf("expected newest first, got %q then %q", latest[0].Name, latest[1].Name)
		}
	})

	t.Run("newsletter", func(t *testing.T) {
		email := fmt.Sprintf("reader-%d@example.com", seed)
		if _, err := store.CreateNewsletterSubscriber(ctx, email); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if _, err := store.CreateNewsletterSubscriber(ctx, " READER-"+fmt.Sprint(seed)+"@example.com"); !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("expected duplicate subscriber to fail, got %v", err)
		}
	})

	t.Run("testimonials", func(t *testing.T) {
		productID := uuid.NewString()
		otherProduct := uuid.NewString()

		first, err := store.CreateTestimonial(ctx, storage.CreateTestimonialParams{
			ProductID:  productID,
			UserName:   "Ada",
			Rating:     5,
			Review:     "Lovely serum",
			ReviewDate: "March 2026",
			ImageURL:   "https://cdn.example.com/ada.jpg",
		})
		if err != nil {
			t.Fatalf("create testimonial: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
		second, err := store.CreateTestimonial(ctx, storage.CreateTestimonialParams{
			ProductID: productID,
			UserName:  "Bola",
			Rating:    4,
			Review:    "Good cleanser",
		})
		if err != nil {
			t.Fatalf("create testimonial: %v", err)
		}
		if _, err := store.CreateTestimonial(ctx, storage.CreateTestimonialParams{
			ProductID: otherProduct,
			UserName:  "Chi",
			Rating:    3,
			Review:    "Fine",
		}); err != nil {
			t.Fatalf("create testimonial: %v", err)
		}

		byProduct, err := store.ListTestimonialsByProduct(ctx, productID)
		if err != nil {
			t.Fatalf("list by product: %v", err)
		}
		if len(byProduct) != 2 || byProduct[0].ID != second.ID || byProduct[1].ID != first.ID {
			t.Fatalf("unexpected testimonials for product: %+v", byProduct)
		}

		rating := 2
		review := "Changed my mind"
		noImage := ""
		updated, err := store.UpdateTestimonial(ctx, first.ID, storage.UpdateTestimonialParams{
			Rating:   &rating,
			Review:   &review,
			ImageURL: &noImage,
		})
		if err != nil {
			t.Fatalf("update testimonial: %v", err)
		}
		if updated.Rating != 2 || updated.Review != review || updated.ImageURL != "" || updated.UserName != "Ada" {
			t.Fatalf("unexpected update result %+v", updated)
		}

		if _, err := store.UpdateTestimonial(ctx, uuid.NewString(), storage.UpdateTestimonialParams{Rating: &rating}); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found on update, got %v", err)
		}

		all, err := store.ListTestimonials(ctx)
		if err != nil {
			t.Fatalf("list testimonials: %v", err)
		}
		if len(all) < 3 {
			t.Fatalf("expected at least 3 testimonials, got %d", len(all))
		}

		if err := store.DeleteTestimonial(ctx, first.ID); err != nil {
			t.Fatalf("delete testimonial: %v", err)
		}
		if _, err := store.FindTestimonialByID(ctx, first.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected deleted testimonial to be gone, got %v", err)
		}
		if err := store.DeleteTestimonial(ctx, first.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found on second delete, got %v", err)
		}
	})

	t.Run("products", func(t *testing.T) {
		category := fmt.Sprintf("serums-%d", seed)
		first, err := store.CreateProduct(ctx, storage.CreateProductParams{
			Title:       "Hydrating Serum",
			Description: "Lightweight serum with 100% hyaluronic acid",
			Price:       65,
			Category:    category,
			ProductType: "serum",
			SkinConcern: "dryness",
			SKU:         "SER-001",
			Stock:       40,
			Images:      []string{"https://cdn.example.com/serum.png"},
			Ingredients: []string{"Hyaluronic Acid", "Niacinamide"},
		})
		if err != nil {
			t.Fatalf("create product: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
		second, err := store.CreateProduct(ctx, storage.CreateProductParams{
			Title:       "Night Serum",
			Description: "Retinal serum for overnight renewal",
			Price:       80,
			Category:    category,
			ProductType: "serum",
			SkinConcern: "ageing",
			SKU:         "SER-002",
			Stock:       10,
		})
		if err != nil {
			t.Fatalf("create product: %v", err)
		}

		found, err := store.FindProductByID(ctx, first.ID)
		if err != nil {
			t.Fatalf("find product: %v", err)
		}
		if found.Title != "Hydrating Serum" || found.Price != 65 || len(found.Ingredients) != 2 || found.Sizes == nil {
			t.Fatalf("unexpected product %+v", found)
		}
		if _, err := store.FindProductByID(ctx, uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}

		list, total, err := store.ListProducts(ctx, storage.ProductFilter{Category: category, Limit: 1})
		if err != nil {
			t.Fatalf("list products: %v", err)
		}
		if total != 2 || len(list) != 1 || list[0].ID != second.ID {
			t.Fatalf("expected newest product of 2, got total %d %+v", total, list)
		}
		list, _, err = store.ListProducts(ctx, storage.ProductFilter{Category: category, Offset: 1, Limit: 1})
		if err != nil {
			t.Fatalf("list products page 2: %v", err)
		}
		if len(list) != 1 || list[0].ID != first.ID {
			t.Fatalf("unexpected second page %+v", list)
		}

		list, total, err = store.ListProducts(ctx, storage.ProductFilter{Category: category, Search: "HYALURONIC"})
		if err != nil {
			t.Fatalf("search products: %v", err)
		}
		if total != 1 || list[0].ID != first.ID {
			t.Fatalf("expected search to match the first product, got %+v", list)
		}
		// Wildcards in the search term match literally.
		if _, total, err = store.ListProducts(ctx, storage.ProductFilter{Category: category, Search: "0%"}); err != nil || total != 1 {
			t.Fatalf("expected literal %% match, got total %d err %v", total, err)
		}
		if _, total, err = store.ListProducts(ctx, storage.ProductFilter{Category: category, Search: "_ight"}); err != nil || total != 0 {
			t.Fatalf("expected literal _ match to miss, got total %d err %v", total, err)
		}
		if _, total, err = store.ListProducts(ctx, storage.ProductFilter{Category: category, SkinConcern: "ageing", ProductType: "serum"}); err != nil || total != 1 {
			t.Fatalf("expected one ageing serum, got total %d err %v", total, err)
		}
	})

	t.Run("orders", func(t *testing.T) {
		email := fmt.Sprintf("Buyer-%d@Example.com", seed)
		productID := uuid.NewString()
		first, err := store.CreateOrder(ctx, storage.CreateOrderParams{
			Email:        email,
			CustomerName: "Ada Buyer",
			Items:        []storage.OrderItem{{ProductID: productID, Quantity: 2, Price: 45}},
			Total:        90,
			ShippingAddress: &storage.Address{
				Street:  "12 Marina Road",
				City:    "Lagos",
				State:   "Lagos",
				Country: "Nigeria",
			},
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if first.Status != storage.OrderPending {
			t.Fatalf("expected new order to be pending, got %s", first.Status)
		}
		time.Sleep(2 * time.Millisecond)
		second, err := store.CreateOrder(ctx, storage.CreateOrderParams{
			Email:        email,
			CustomerName: "Ada Buyer",
			Items:        []storage.OrderItem{{ProductID: productID, Quantity: 1, Price: 45}},
			Total:        45,
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}

		found, err := store.FindOrderByID(ctx, first.ID)
		if err != nil {
			t.Fatalf("find order: %v", err)
		}
		if found.Email != strings.ToLower(email) || len(found.Items) != 1 || found.Items[0].Quantity != 2 ||
			found.ShippingAddress == nil || found.ShippingAddress.City != "Lagos" {
			t.Fatalf("unexpected order %+v", found)
		}

		list, total, err := store.ListOrders(ctx, storage.OrderFilter{Since: first.CreatedAt, Limit: 1})
		if err != nil {
			t.Fatalf("list orders: %v", err)
		}
		if total < 2 || len(list) != 1 || list[0].ID != second.ID {
			t.Fatalf("expected newest order first, got total %d %+v", total, list)
		}
		if list[0].ShippingAddress != nil {
			t.Fatalf("expected no shipping address, got %+v", list[0].ShippingAddress)
		}
		if _, total, err := store.ListOrders(ctx, storage.OrderFilter{Since: time.Now().Add(time.Hour)}); err != nil || total != 0 {
			t.Fatalf("expected no future orders, got total %d err %v", total, err)
		}

		shipped, err := store.UpdateOrderStatus(ctx, first.ID, storage.OrderShipped)
		if err != nil {
			t.Fatalf("update order status: %v", err)
		}
		if shipped.Status != storage.OrderShipped || shipped.Total != 90 {
			t.Fatalf("unexpected updated order %+v", shipped)
		}
		if _, err := store.UpdateOrderStatus(ctx, uuid.NewString(), storage.OrderPaid); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SnowzyTech/regime/storage"
)

type Store struct {
	mu sync.RWMutex

	adminsByEmail     map[string]storage.AdminCredential
	contactMessages   []storage.ContactMessage
	subscribersByMail map[string]storage.NewsletterSubscriber
	testimonialsByID  map[string]storage.Testimonial
	testimonialSeq    map[string]uint64
	products          []storage.Product
	orders            []storage.Order

	seq uint64
}

func New() *Store {
	return &Store{
		adminsByEmail:     map[string]storage.AdminCredential{},
		subscribersByMail: map[string]storage.NewsletterSubscriber{},
		testimonialsByID:  map[string]storage.Testimonial{},
		testimonialSeq:    map[string]uint64{},
	}
}

var _ storage.Primary = (*Store)(nil)

func (s *Store) CreateAdminCredential(_ context.Context, params storage.CreateAdminCredentialParams) (storage.AdminCredential, error) {
	email := normalizeEmail(params.Email)
	if email == "" {
		return storage.AdminCredential{}, storage.ErrAlreadyExists
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.adminsByEmail[email]; exists {
		return storage.AdminCredential{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	cred := storage.AdminCredential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.adminsByEmail[email] = cred
	return cred, nil
}

func (s *Store) FindAdminCredentialByEmail(_ context.Context, email string) (storage.AdminCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.adminsByEmail[normalizeEmail(email)]
	if !ok {
		return storage.AdminCredential{}, storage.ErrNotFound
	}
	return cred, nil
}

func (s *Store) CreateContactMessage(_ context.Context, params storage.CreateContactMessageParams) (storage.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := storage.ContactMessage{
		ID:          uuid.NewString(),
		Name:        params.Name,
		Email:       normalizeEmail(params.Email),
		Phone:       params.Phone,
		InquiryType: params.InquiryType,
		Message:     params.Message,
		IPAddress:   strings.TrimSpace(params.IPAddress),
		CreatedAt:   time.Now().UTC(),
	}
	s.contactMessages = append(s.contactMessages, msg)
	return msg, nil
}

func (s *Store) ListContactMessages(_ context.Context, limit int) ([]storage.ContactMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.ContactMessage, 0, len(s.contactMessages))
	for i := len(s.contactMessages) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.contactMessages[i])
	}
	return out, nil
}

func (s *Store) CreateNewsletterSubscriber(_ context.Context, email string) (storage.NewsletterSubscriber, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return storage.NewsletterSubscriber{}, storage.ErrAlreadyExists
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscribersByMail[normalized]; exists {
		return storage.NewsletterSubscriber{}, storage.ErrAlreadyExists
	}
	sub := storage.NewsletterSubscriber{
		ID:        uuid.NewString(),
		Email:     normalized,
		CreatedAt: time.Now().UTC(),
	}
	s.subscribersByMail[normalized] = sub
	return sub, nil
}

func (s *Store) CreateTestimonial(_ context.Context, params storage.CreateTestimonialParams) (storage.Testimonial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	t := storage.Testimonial{
		ID:         uuid.NewString(),
		ProductID:  normalizeID(params.ProductID),
		UserName:   params.UserName,
		Rating:     params.Rating,
		Review:     params.Review,
		ReviewDate: params.ReviewDate,
		ImageURL:   params.ImageURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.seq++
	s.testimonialsByID[t.ID] = t
	s.testimonialSeq[t.ID] = s.seq
	return t, nil
}

func (s *Store) FindTestimonialByID(_ context.Context, id string) (storage.Testimonial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.testimonialsByID[normalizeID(id)]
	if !ok {
		return storage.Testimonial{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTestimonials(_ context.Context) ([]storage.Testimonial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTestimonials(func(storage.Testimonial) bool { return true }), nil
}

func (s *Store) ListTestimonialsByProduct(_ context.Context, productID string) ([]storage.Testimonial, error) {
	pid := normalizeID(productID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTestimonials(func(t storage.Testimonial) bool { return t.ProductID == pid }), nil
}

func (s *Store) UpdateTestimonial(_ context.Context, id string, params storage.UpdateTestimonialParams) (storage.Testimonial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeID(id)
	t, ok := s.testimonialsByID[key]
	if !ok {
		return storage.Testimonial{}, storage.ErrNotFound
	}
	if params.ProductID != nil {
		pid := normalizeID(*params.ProductID)
		params.ProductID = &pid
	}
	t = params.Apply(t)
	t.UpdatedAt = time.Now().UTC()
	s.testimonialsByID[key] = t
	return t, nil
}

func (s *Store) DeleteTestimonial(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeID(id)
	if _, ok := s.testimonialsByID[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.testimonialsByID, key)
	delete(s.testimonialSeq, key)
	return nil
}

func (s *Store) CreateProduct(_ context.Context, params storage.CreateProductParams) (storage.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := storage.Product{
		ID:          uuid.NewString(),
		Title:       params.Title,
		Description: params.Description,
		Price:       params.Price,
		Category:    params.Category,
		ProductType: params.ProductType,
		SkinConcern: params.SkinConcern,
		SKU:         params.SKU,
		Stock:       params.Stock,
		Images:      cloneStrings(params.Images),
		Ingredients: cloneStrings(params.Ingredients),
		Sizes:       cloneStrings(params.Sizes),
		Application: params.Application,
		Warning:     params.Warning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.products = append(s.products, p)
	return copyProduct(p), nil
}

func (s *Store) FindProductByID(_ context.Context, id string) (storage.Product, error) {
	key := normalizeID(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.ID == key {
			return copyProduct(p), nil
		}
	}
	return storage.Product{}, storage.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context, filter storage.ProductFilter) ([]storage.Product, int, error) {
	search := strings.ToLower(filter.Search)
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []storage.Product{}
	for i := len(s.products) - 1; i >= 0; i-- {
		p := s.products[i]
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) && !strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.SkinConcern != "" && p.SkinConcern != filter.SkinConcern {
			continue
		}
		if filter.ProductType != "" && p.ProductType != filter.ProductType {
			continue
		}
		matches = append(matches, copyProduct(p))
	}
	return page(matches, filter.Offset, filter.Limit), len(matches), nil
}

func (s *Store) CreateOrder(_ context.Context, params storage.CreateOrderParams) (storage.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	o := storage.Order{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(params.Email),
		CustomerName: params.CustomerName,
		Items:        slices.Clone(params.Items),
		Total:        params.Total,
		Status:       storage.OrderPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i := range o.Items {
		o.Items[i].ProductID = normalizeID(o.Items[i].ProductID)
	}
	if params.ShippingAddress != nil {
		addr := *params.ShippingAddress
		o.ShippingAddress = &addr
	}
	s.orders = append(s.orders, o)
	return copyOrder(o), nil
}

func (s *Store) FindOrderByID(_ context.Context, id string) (storage.Order, error) {
	key := normalizeID(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == key {
			return copyOrder(o), nil
		}
	}
	return storage.Order{}, storage.ErrNotFound
}

func (s *Store) ListOrders(_ context.Context, filter storage.OrderFilter) ([]storage.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []storage.Order{}
	for i := len(s.orders) - 1; i >= 0; i-- {
		o := s.orders[i]
		if !filter.Since.IsZero() && o.CreatedAt.Before(filter.Since) {
			continue
		}
		matches = append(matches, copyOrder(o))
	}
	return page(matches, filter.Offset, filter.Limit), len(matches), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status storage.OrderStatus) (storage.Order, error) {
	key := normalizeID(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == key {
			s.orders[i].Status = status
			s.orders[i].UpdatedAt = time.Now().UTC()
			return copyOrder(s.orders[i]), nil
		}
	}
	return storage.Order{}, storage.ErrNotFound
}

// sortedTestimonials returns matches newest first. Callers hold the lock.
func (s *Store) sortedTestimonials(keep func(storage.Testimonial) bool) []storage.Testimonial {
	out := []storage.Testimonial{}
	for _, t := range s.testimonialsByID {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.testimonialSeq[out[i].ID] > s.testimonialSeq[out[j].ID]
	})
	return out
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func normalizeID(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// page slices one page out of items; limit <= 0 means the rest.
func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[max(offset, 0):]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

func copyProduct(p storage.Product) storage.Product {
	p.Images = cloneStrings(p.Images)
	p.Ingredients = cloneStrings(p.Ingredients)
	p.Sizes = cloneStrings(p.Sizes)
	return p
}

func copyOrder(o storage.Order) storage.Order {
	o.Items = slices.Clone(o.Items)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		o.ShippingAddress = &addr
	}
	return o
}

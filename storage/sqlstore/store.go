package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SnowzyTech/regime/storage"
)

type dialect int

const (
	dialectPostgres dialect = iota + 1
	dialectMySQL
	dialectSQLite
)

const (
	testimonialColumns = "id, product_id, user_name, rating, review, review_date, image_url, created_at, updated_at"
	productColumns     = "id, title, description, price, category, product_type, skin_concern, sku, stock, images, ingredients, sizes, application, warning, created_at, updated_at"
	orderColumns       = "id, email, customer_name, items, total, status, shipping_address, created_at, updated_at"
)

type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ storage.Primary = (*Store)(nil)

func NewPostgres(db *sql.DB) *Store {
	return &Store{db: db, dialect: dialectPostgres}
}

func NewMySQL(db *sql.DB) *Store {
	return &Store{db: db, dialect: dialectMySQL}
}

func NewSQLite(db *sql.DB) *Store {
	return &Store{db: db, dialect: dialectSQLite}
}

func (s *Store) CreateAdminCredential(ctx context.Context, params storage.CreateAdminCredentialParams) (storage.AdminCredential, error) {
	email := normalizeEmail(params.Email)
	if email == "" {
		return storage.AdminCredential{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	q := fmt.Sprintf(
		"INSERT INTO admin_credentials (id, email, password_hash, created_at, updated_at) VALUES (%s, %s, %s, %s, %s)",
		s.p(1), s.p(2), s.p(3), s.p(4), s.p(5),
	)
	_, err := s.db.ExecContext(ctx, q, id, email, params.PasswordHash, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		if isDuplicateError(err) {
			return storage.AdminCredential{}, storage.ErrAlreadyExists
		}
		return storage.AdminCredential{}, err
	}

	return storage.AdminCredential{
		ID:           id,
		Email:        email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Store) FindAdminCredentialByEmail(ctx context.Context, email string) (storage.AdminCredential, error) {
	q := fmt.Sprintf("SELECT id, email, password_hash, created_at, updated_at FROM admin_credentials WHERE email = %s", s.p(1))
	row := s.db.QueryRowContext(ctx, q, normalizeEmail(email))

	var cred storage.AdminCredential
	var createdAt, updatedAt int64
	if err := row.Scan(&cred.ID, &cred.Email, &cred.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AdminCredential{}, storage.ErrNotFound
		}
		return storage.AdminCredential{}, err
	}
	cred.CreatedAt = time.UnixMilli(createdAt).UTC()
	cred.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return cred, nil
}

func (s *Store) CreateContactMessage(ctx context.Context, params storage.CreateContactMessageParams) (storage.ContactMessage, error) {
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
	q := fmt.Sprintf(
		"INSERT INTO contact_messages (id, name, email, phone, inquiry_type, message, ip_address, created_at) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		s.p(1), s.p(2), s.p(3), s.p(4), s.p(5), s.p(6), s.p(7), s.p(8),
	)
	_, err := s.db.ExecContext(ctx, q,
		msg.ID,
		msg.Name,
		msg.Email,
		msg.Phone,
		msg.InquiryType,
		msg.Message,
		msg.IPAddress,
		msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return storage.ContactMessage{}, err
	}
	return msg, nil
}

func (s *Store) ListContactMessages(ctx context.Context, limit int) ([]storage.ContactMessage, error) {
	q := "SELECT id, name, email, phone, inquiry_type, message, ip_address, created_at FROM contact_messages ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT " + s.p(1)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.ContactMessage{}
	for rows.Next() {
		var msg storage.ContactMessage
		var createdAt int64
		if err := rows.Scan(
			&msg.ID,
			&msg.Name,
			&msg.Email,
			&msg.Phone,
			&msg.InquiryType,
			&msg.Message,
			&msg.IPAddress,
			&createdAt,
		); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateNewsletterSubscriber(ctx context.Context, email string) (storage.NewsletterSubscriber, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return storage.NewsletterSubscriber{}, storage.ErrAlreadyExists
	}
	sub := storage.NewsletterSubscriber{
		ID:        uuid.NewString(),
		Email:     normalized,
		CreatedAt: time.Now().UTC(),
	}
	q := fmt.Sprintf("INSERT INTO newsletter_subscribers (id, email, created_at) VALUES (%s, %s, %s)", s.p(1), s.p(2), s.p(3))
	if _, err := s.db.ExecContext(ctx, q, sub.ID, sub.Email, sub.CreatedAt.UnixMilli()); err != nil {
		if isDuplicateError(err) {
			return storage.NewsletterSubscriber{}, storage.ErrAlreadyExists
		}
		return storage.NewsletterSubscriber{}, err
	}
	return sub, nil
}

func (s *Store) CreateTestimonial(ctx context.Context, params storage.CreateTestimonialParams) (storage.Testimonial, error) {
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
	q := fmt.Sprintf("INSERT INTO testimonials ("+testimonialColumns+") VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)",
		s.p(1), s.p(2), s.p(3), s.p(4), s.p(5), s.p(6), s.p(7), s.p(8), s.p(9),
	)
	_, err := s.db.ExecContext(ctx, q,
		t.ID,
		t.ProductID,
		t.UserName,
		t.Rating,
		t.Review,
		t.ReviewDate,
		t.ImageURL,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return storage.Testimonial{}, err
	}
	return t, nil
}

func (s *Store) FindTestimonialByID(ctx context.Context, id string) (storage.Testimonial, error) {
	q := fmt.Sprintf("SELECT "+testimonialColumns+" FROM testimonials WHERE id = %s", s.p(1))
	return scanTestimonial(s.db.QueryRowContext(ctx, q, normalizeID(id)))
}

func (s *Store) ListTestimonials(ctx context.Context) ([]storage.Testimonial, error) {
	return s.queryTestimonials(ctx, "SELECT "+testimonialColumns+" FROM testimonials ORDER BY created_at DESC, id DESC")
}

func (s *Store) ListTestimonialsByProduct(ctx context.Context, productID string) ([]storage.Testimonial, error) {
	q := fmt.Sprintf("SELECT "+testimonialColumns+" FROM testimonials WHERE product_id = %s ORDER BY created_at DESC, id DESC", s.p(1))
	return s.queryTestimonials(ctx, q, normalizeID(productID))
}

func (s *Store) UpdateTestimonial(ctx context.Context, id string, params storage.UpdateTestimonialParams) (storage.Testimonial, error) {
	key := normalizeID(id)
	if params.ProductID != nil {
		pid := normalizeID(*params.ProductID)
		params.ProductID = &pid
	}

	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = %s", column, s.p(len(args))))
	}
	if params.ProductID != nil {
		add("product_id", *params.ProductID)
	}
	if params.UserName != nil {
		add("user_name", *params.UserName)
	}
	if params.Rating != nil {
		add("rating", *params.Rating)
	}
	if params.Review != nil {
		add("review", *params.Review)
	}
	if params.ReviewDate != nil {
		add("review_date", *params.ReviewDate)
	}
	if params.ImageURL != nil {
		add("image_url", *params.ImageURL)
	}
	add("updated_at", time.Now().UTC().UnixMilli())
	args = append(args, key)

	q := fmt.Sprintf("UPDATE testimonials SET %s WHERE id = %s", strings.Join(sets, ", "), s.p(len(args)))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return storage.Testimonial{}, err
	}
	// MySQL reports zero affected rows for a no-op update, so existence is
	// settled by the read.
	return s.FindTestimonialByID(ctx, key)
}

func (s *Store) DeleteTestimonial(ctx context.Context, id string) error {
	q := fmt.Sprintf("DELETE FROM testimonials WHERE id = %s", s.p(1))
	res, err := s.db.ExecContext(ctx, q, normalizeID(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) queryTestimonials(ctx context.Context, q string, args ...any) ([]storage.Testimonial, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.Testimonial{}
	for rows.Next() {
		t, err := scanTestimonial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateProduct(ctx context.Context, params storage.CreateProductParams) (storage.Product, error) {
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
		Images:      orEmpty(params.Images),
		Ingredients: orEmpty(params.Ingredients),
		Sizes:       orEmpty(params.Sizes),
		Application: params.Application,
		Warning:     params.Warning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	images, err := json.Marshal(p.Images)
	if err != nil {
		return storage.Product{}, err
	}
	ingredients, err := json.Marshal(p.Ingredients)
	if err != nil {
		return storage.Product{}, err
	}
	sizes, err := json.Marshal(p.Sizes)
	if err != nil {
		return storage.Product{}, err
	}

	q := "INSERT INTO products (" + productColumns + ") VALUES (" + s.placeholders(16) + ")"
	_, err = s.db.ExecContext(ctx, q,
		p.ID,
		p.Title,
		p.Description,
		p.Price,
		p.Category,
		p.ProductType,
		p.SkinConcern,
		p.SKU,
		p.Stock,
		string(images),
		string(ingredients),
		string(sizes),
		p.Application,
		p.Warning,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return storage.Product{}, err
	}
	return p, nil
}

func (s *Store) FindProductByID(ctx context.Context, id string) (storage.Product, error) {
	q := fmt.Sprintf("SELECT "+productColumns+" FROM products WHERE id = %s", s.p(1))
	return scanProduct(s.db.QueryRowContext(ctx, q, normalizeID(id)))
}

func (s *Store) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]storage.Product, int, error) {
	conds := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return s.p(len(args))
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		conds = append(conds, fmt.Sprintf("(LOWER(title) LIKE %s ESCAPE '!' OR LOWER(description) LIKE %s ESCAPE '!')", arg(pattern), arg(pattern)))
	}
	if filter.Category != "" {
		conds = append(conds, "category = "+arg(filter.Category))
	}
	if filter.SkinConcern != "" {
		conds = append(conds, "skin_concern = "+arg(filter.SkinConcern))
	}
	if filter.ProductType != "" {
		conds = append(conds, "product_type = "+arg(filter.ProductType))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + productColumns + " FROM products" + where + " ORDER BY created_at DESC, id DESC" + s.pageClause(filter.Offset, filter.Limit, arg)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []storage.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) CreateOrder(ctx context.Context, params storage.CreateOrderParams) (storage.Order, error) {
	now := time.Now().UTC()
	o := storage.Order{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(params.Email),
		CustomerName: params.CustomerName,
		Items:        make([]storage.OrderItem, len(params.Items)),
		Total:        params.Total,
		Status:       storage.OrderPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	copy(o.Items, params.Items)
	for i := range o.Items {
		o.Items[i].ProductID = normalizeID(o.Items[i].ProductID)
	}
	if params.ShippingAddress != nil {
		addr := *params.ShippingAddress
		o.ShippingAddress = &addr
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return storage.Order{}, err
	}
	address := ""
	if o.ShippingAddress != nil {
		raw, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return storage.Order{}, err
		}
		address = string(raw)
	}

	q := "INSERT INTO orders (" + orderColumns + ") VALUES (" + s.placeholders(9) + ")"
	_, err = s.db.ExecContext(ctx, q,
		o.ID,
		o.Email,
		o.CustomerName,
		string(items),
		o.Total,
		string(o.Status),
		address,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return storage.Order{}, err
	}
	return o, nil
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (storage.Order, error) {
	q := fmt.Sprintf("SELECT "+orderColumns+" FROM orders WHERE id = %s", s.p(1))
	return scanOrder(s.db.QueryRowContext(ctx, q, normalizeID(id)))
}

func (s *Store) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]storage.Order, int, error) {
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return s.p(len(args))
	}
	where := ""
	if !filter.Since.IsZero() {
		where = " WHERE created_at >= " + arg(filter.Since.UTC().UnixMilli())
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + orderColumns + " FROM orders" + where + " ORDER BY created_at DESC, id DESC" + s.pageClause(filter.Offset, filter.Limit, arg)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []storage.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status storage.OrderStatus) (storage.Order, error) {
	key := normalizeID(id)
	q := fmt.Sprintf("UPDATE orders SET status = %s, updated_at = %s WHERE id = %s", s.p(1), s.p(2), s.p(3))
	if _, err := s.db.ExecContext(ctx, q, string(status), time.Now().UTC().UnixMilli(), key); err != nil {
		return storage.Order{}, err
	}
	return s.FindOrderByID(ctx, key)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTestimonial(row scanner) (storage.Testimonial, error) {
	var t storage.Testimonial
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&t.ID,
		&t.ProductID,
		&t.UserName,
		&t.Rating,
		&t.Review,
		&t.ReviewDate,
		&t.ImageURL,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Testimonial{}, storage.ErrNotFound
		}
		return storage.Testimonial{}, err
	}
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return t, nil
}

func scanProduct(row scanner) (storage.Product, error) {
	var p storage.Product
	var images, ingredients, sizes string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.ProductType,
		&p.SkinConcern,
		&p.SKU,
		&p.Stock,
		&images,
		&ingredients,
		&sizes,
		&p.Application,
		&p.Warning,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Product{}, storage.ErrNotFound
		}
		return storage.Product{}, err
	}
	for _, col := range []struct {
		raw string
		dst *[]string
	}{{images, &p.Images}, {ingredients, &p.Ingredients}, {sizes, &p.Sizes}} {
		if err := decodeList(col.raw, col.dst); err != nil {
			return storage.Product{}, fmt.Errorf("product %s: %w", p.ID, err)
		}
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return p, nil
}

func scanOrder(row scanner) (storage.Order, error) {
	var o storage.Order
	var items, status, address string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&o.ID,
		&o.Email,
		&o.CustomerName,
		&items,
		&o.Total,
		&status,
		&address,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Order{}, storage.ErrNotFound
		}
		return storage.Order{}, err
	}
	if err := decodeList(items, &o.Items); err != nil {
		return storage.Order{}, fmt.Errorf("order %s items: %w", o.ID, err)
	}
	if address != "" {
		o.ShippingAddress = &storage.Address{}
		if err := json.Unmarshal([]byte(address), o.ShippingAddress); err != nil {
			return storage.Order{}, fmt.Errorf("order %s address: %w", o.ID, err)
		}
	}
	o.Status = storage.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	o.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return o, nil
}

// decodeList reads a JSON array column; an empty column is an empty list.
func decodeList[T any](raw string, dst *[]T) error {
	*dst = []T{}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// pageClause renders LIMIT/OFFSET through arg. SQLite and MySQL need a LIMIT
// whenever an OFFSET is given.
func (s *Store) pageClause(offset, limit int, arg func(any) string) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}
	clause := " LIMIT " + arg(limit)
	if offset > 0 {
		clause += " OFFSET " + arg(offset)
	}
	return clause
}

func (s *Store) placeholders(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = s.p(i + 1)
	}
	return strings.Join(out, ", ")
}

// escapeLike escapes LIKE wildcards with '!', which every dialect accepts as
// an ESCAPE character without string-literal quoting rules getting involved.
func escapeLike(v string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(v)
}

func (s *Store) p(index int) string {
	if s.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func normalizeID(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate") {
		return true
	}
	if strings.Contains(msg, "unique constraint") {
		return true
	}
	if strings.Contains(msg, "error 1062") {
		return true
	}
	return false
}

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bakery-pos/internal/models"
)

// MemoryStore keeps the catalog and the sale log in process memory.
// All state is lost on restart.
type MemoryStore struct {
	mu             sync.RWMutex
	categories     []models.Category
	products       []models.Product
	sales          []models.SaleRecord
	nextCategoryID int64
	nextProductID  int64
	saleSeq        int64
	now            func() time.Time
}

// NewMemoryStore creates a store preloaded with the given catalog
func NewMemoryStore(catalog *Catalog) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	if catalog != nil {
		s.categories = append(s.categories, catalog.Categories...)
		s.products = append(s.products, catalog.Products...)
	}
	for _, c := range s.categories {
		if c.ID > s.nextCategoryID {
			s.nextCategoryID = c.ID
		}
	}
	for _, p := range s.products {
		if p.ID > s.nextProductID {
			s.nextProductID = p.ID
		}
	}
	return s
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// ListCategories returns all categories in creation order
func (s *MemoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

// GetCategory retrieves a category by ID
func (s *MemoryStore) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	c := s.categories[i]
	return &c, nil
}

// CreateCategory appends a new category
func (s *MemoryStore) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCategoryID++
	c := models.Category{ID: s.nextCategoryID, Name: name}
	s.categories = append(s.categories, c)
	return &c, nil
}

// UpdateCategory renames a category
func (s *MemoryStore) UpdateCategory(ctx context.Context, id int64, name string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	s.categories[i].Name = name
	c := s.categories[i]
	return &c, nil
}

// DeleteCategory removes an unreferenced category
func (s *MemoryStore) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.CategoryID == id {
			return fmt.Errorf("category %d: %w", id, models.ErrCategoryInUse)
		}
	}

	i := s.categoryIndex(id)
	if i < 0 {
		return fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	return nil
}

// ListProducts returns all products with live stock and prices
func (s *MemoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// GetProduct retrieves a product by ID
func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.productIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	p := s.products[i]
	return &p, nil
}

// CreateProduct assigns a new ID and appends the product
func (s *MemoryStore) CreateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	product.ID = s.nextProductID
	s.products = append(s.products, product)
	return &product, nil
}

// UpdateProduct replaces a product. Last write wins.
func (s *MemoryStore) UpdateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(product.ID)
	if i < 0 {
		return nil, fmt.Errorf("product %d: %w", product.ID, models.ErrNotFound)
	}
	s.products[i] = product
	return &product, nil
}

// DeleteProduct removes a product
func (s *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(id)
	if i < 0 {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	s.products = append(s.products[:i], s.products[i+1:]...)
	return nil
}

// CommitSale records the sale and decrements stock under one lock
func (s *MemoryStore) CommitSale(ctx context.Context, sale *models.SaleRecord) ([]StockChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.Timestamp.IsZero() {
		sale.Timestamp = s.now()
	}
	s.saleSeq++
	sale.Seq = s.saleSeq
	sale.ID = FormatSaleID(sale.Seq, sale.Timestamp)

	record := *sale
	record.Items = make([]models.TicketItem, len(sale.Items))
	copy(record.Items, sale.Items)
	s.sales = append(s.sales, record)

	changes := make([]StockChange, 0, len(sale.Items))
	for _, item := range sale.Items {
		i := s.productIndex(item.ID)
		if i < 0 {
			continue
		}
		before := s.products[i].CurrentStock
		after := ClampedDecrement(before, item.Quantity)
		s.products[i].CurrentStock = after
		changes = append(changes, StockChange{
			ProductID: item.ID,
			Before:    before,
			Sold:      item.Quantity,
			After:     after,
		})
	}

	return changes, nil
}

// GetSale retrieves a sale by ID
func (s *MemoryStore) GetSale(ctx context.Context, id string) (*models.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id {
			out := sale
			return &out, nil
		}
	}
	return nil, fmt.Errorf("sale %s: %w", id, models.ErrNotFound)
}

// ListSales returns the sale working set in commit order
func (s *MemoryStore) ListSales(ctx context.Context) ([]models.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SaleRecord, len(s.sales))
	copy(out, s.sales)
	return out, nil
}

// PurgeSales drops all sales paid with method
func (s *MemoryStore) PurgeSales(ctx context.Context, method models.PaymentMethod) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.sales[:0]
	purged := 0
	for _, sale := range s.sales {
		if sale.Method == method {
			purged++
			continue
		}
		kept = append(kept, sale)
	}
	s.sales = kept
	return purged, nil
}

func (s *MemoryStore) categoryIndex(id int64) int {
	for i, c := range s.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) productIndex(id int64) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Package catalog manages the menu: products with sizes and addons,
// grouped into categories. It is a collaborator of the order core: the
// core asks it for price components at placement time and never caches
// the answer.
package catalog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"cafe-system/internal/domain"
	"cafe-system/internal/jsonfile"
	"cafe-system/internal/lifecycle"
)

// Label is a localized display name keyed by language code.
type Label map[string]string

// Get resolves the label for lang, falling back to English and then to
// any available translation.
func (l Label) Get(lang string) string {
	if v, ok := l[lang]; ok {
		return v
	}
	if v, ok := l["en"]; ok {
		return v
	}
	for _, v := range l {
		return v
	}
	return ""
}

// Option is a purchasable size or addon with its surcharge.
type Option struct {
	Name  Label   `json:"name"`
	Price float64 `json:"price"`
}

type Product struct {
	ID       string   `json:"id"`
	Name     Label    `json:"name"`
	Price    float64  `json:"price"`
	Category string   `json:"category,omitempty"`
	Image    string   `json:"image,omitempty"`
	Sizes    []Option `json:"sizes,omitempty"`
	Addons   []Option `json:"addons,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name Label  `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type Catalog struct {
	mu         sync.RWMutex
	products   []Product
	categories []Category
	lastID     int64

	productsPath   string
	categoriesPath string
	log            *zap.Logger
}

func Open(dir string, log *zap.Logger) (*Catalog, error) {
	c := &Catalog{
		productsPath:   filepath.Join(dir, "products.json"),
		categoriesPath: filepath.Join(dir, "categories.json"),
		log:            log,
	}
	if _, err := jsonfile.Read(c.productsPath, &c.products); err != nil {
		return nil, err
	}
	if _, err := jsonfile.Read(c.categoriesPath, &c.categories); err != nil {
		return nil, err
	}
	log.Info("catalog loaded",
		zap.Int("products", len(c.products)),
		zap.Int("categories", len(c.categories)))
	return c, nil
}

// nextID mirrors the timestamp ids the rest of the system uses, bumped
// past the last one handed out. Caller must hold c.mu.
func (c *Catalog) nextID() string {
	now := time.Now().UnixMilli()
	if now <= c.lastID {
		now = c.lastID + 1
	}
	c.lastID = now
	return strconv.FormatInt(now, 10)
}

func (c *Catalog) Products() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Product(nil), c.products...)
}

func (c *Catalog) AddProduct(p Product) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.ID = c.nextID()
	c.products = append(c.products, p)
	return p, jsonfile.Write(c.productsPath, c.products)
}

// UpdateProduct replaces the product and returns the updated copy plus
// the previous image path so the caller can delete a replaced upload.
func (c *Catalog) UpdateProduct(id string, p Product) (Product, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID != id {
			continue
		}
		oldImage := c.products[i].Image
		p.ID = id
		c.products[i] = p
		return p, oldImage, jsonfile.Write(c.productsPath, c.products)
	}
	return Product{}, "", fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
}

func (c *Catalog) DeleteProduct(id string) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID != id {
			continue
		}
		removed := c.products[i]
		c.products = append(c.products[:i], c.products[i+1:]...)
		return removed, jsonfile.Write(c.productsPath, c.products)
	}
	return Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
}

func (c *Catalog) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Category(nil), c.categories...)
}

func (c *Catalog) AddCategory(cat Category) (Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat.ID = c.nextID()
	c.categories = append(c.categories, cat)
	return cat, jsonfile.Write(c.categoriesPath, c.categories)
}

func (c *Catalog) UpdateCategory(id string, cat Category) (Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.categories {
		if c.categories[i].ID != id {
			continue
		}
		cat.ID = id
		c.categories[i] = cat
		return cat, jsonfile.Write(c.categoriesPath, c.categories)
	}
	return Category{}, fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
}

func (c *Catalog) DeleteCategory(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.categories {
		if c.categories[i].ID == id {
			c.categories = append(c.categories[:i], c.categories[i+1:]...)
			return jsonfile.Write(c.categoriesPath, c.categories)
		}
	}
	return fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
}

// ResolveLine returns the current price components for a product line:
// base unit price, the surcharge of the named size and of each named
// addon. The lifecycle service snapshots the result into the order.
func (c *Catalog) ResolveLine(productID, size string, addons []string) (lifecycle.ResolvedLine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var prod *Product
	for i := range c.products {
		if c.products[i].ID == productID {
			prod = &c.products[i]
			break
		}
	}
	if prod == nil {
		return lifecycle.ResolvedLine{}, fmt.Errorf("unknown product %s", productID)
	}

	res := lifecycle.ResolvedLine{
		Name: prod.Name.Get("en"),
		Unit: prod.Price,
	}
	if size != "" {
		opt, ok := findOption(prod.Sizes, size)
		if !ok {
			return lifecycle.ResolvedLine{}, fmt.Errorf("product %s has no size %q", productID, size)
		}
		res.Size = &domain.LineOption{Name: size, Price: opt.Price}
	}
	for _, name := range addons {
		opt, ok := findOption(prod.Addons, name)
		if !ok {
			return lifecycle.ResolvedLine{}, fmt.Errorf("product %s has no addon %q", productID, name)
		}
		res.Addons = append(res.Addons, domain.LineOption{Name: name, Price: opt.Price})
	}
	return res, nil
}

func findOption(opts []Option, name string) (Option, bool) {
	for _, o := range opts {
		for _, v := range o.Name {
			if v == name {
				return o, true
			}
		}
	}
	return Option{}, false
}

package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/metrics"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// CatalogView is a point-in-time, read-only view of the catalog. The order
// engine resolves and prices a whole submission against one view so every
// line item sees the same catalog state.
type CatalogView interface {
	PizzaByID(id string) (*models.Pizza, bool)
	ToppingByID(id string) (*models.Topping, bool)
}

// CatalogSummary reports the catalog counts after a cache warm, mirroring
// the refresh_menu_cache response payload.
type CatalogSummary struct {
	PizzasCount       int `json:"pizzas_count"`
	ToppingsCount     int `json:"toppings_count"`
	CategoriesCount   int `json:"categories_count"`
	ActiveOffersCount int `json:"active_offers_count"`
	LocationsCount    int `json:"locations_count"`
}

// CatalogCache serves catalog reads from an immutable in-memory snapshot.
// A read that finds no snapshot, or one stamped with an older store
// version, rebuilds from the CatalogStore before answering. Invalidate
// drops the whole projection at once; there is no partial invalidation
// because cross-references (toppings to categories, offers to locations)
// make partial refresh unsafe.
type CatalogCache interface {
	ListPizzas(ctx context.Context) ([]models.Pizza, error)
	GetPizza(ctx context.Context, id string) (*models.Pizza, error)
	ListToppings(ctx context.Context, category string) ([]models.Topping, error)
	GetTopping(ctx context.Context, id string) (*models.Topping, error)
	ListCategories(ctx context.Context) ([]models.ToppingCategory, error)
	PopularToppings(ctx context.Context, limit int) ([]models.ToppingPopularity, error)
	ListLocations(ctx context.Context, city string) ([]models.StoreLocation, error)
	ActiveOffers(ctx context.Context, locationID string) ([]models.Offer, error)

	// View returns the current snapshot for multi-entity resolution.
	View(ctx context.Context) (CatalogView, error)

	// Invalidate atomically drops the installed snapshot. The next read
	// observes every mutation committed before this call returned.
	Invalidate()

	// Warm rebuilds the snapshot if needed and reports entity counts.
	Warm(ctx context.Context) (*CatalogSummary, error)
}

// catalogSnapshot is an immutable projection of the whole catalog. All
// slices are pre-sorted at build time and must never be mutated; filtered
// reads copy into fresh slices.
type catalogSnapshot struct {
	version int64
	builtAt time.Time

	pizzas     []models.Pizza           // popularity desc, then name
	toppings   []models.Topping         // category name, then name; CategoryName resolved
	categories []models.ToppingCategory // name asc
	locations  []models.StoreLocation   // city, then name
	offers     []models.Offer           // discount value desc, then title

	pizzasByID    map[string]*models.Pizza
	toppingsByID  map[string]*models.Topping
	toppingCounts map[string]int64
}

func (s *catalogSnapshot) PizzaByID(id string) (*models.Pizza, bool) {
	p, ok := s.pizzasByID[id]
	return p, ok
}

func (s *catalogSnapshot) ToppingByID(id string) (*models.Topping, bool) {
	t, ok := s.toppingsByID[id]
	return t, ok
}

// catalogCache is the snapshot-swapping implementation of CatalogCache
type catalogCache struct {
	store    CatalogStore
	snapshot atomic.Pointer[catalogSnapshot]

	// mu serializes rebuilds so concurrent misses cost one store round-trip
	mu sync.Mutex
}

// NewCatalogCache creates a new instance of CatalogCache over the store
func NewCatalogCache(store CatalogStore) CatalogCache {
	return &catalogCache{store: store}
}

// current returns a snapshot no older than the store version, rebuilding
// when the installed one is missing or stale. Readers never block on a
// rebuild they did not trigger: the previous snapshot stays installed (and
// served to hit-path readers) until the new one replaces it.
func (c *catalogCache) current(ctx context.Context) (*catalogSnapshot, error) {
	if snap := c.snapshot.Load(); snap != nil && snap.version == c.store.Version() {
		metrics.CacheHits.Inc()
		return snap, nil
	}
	metrics.CacheMisses.Inc()
	return c.rebuild(ctx)
}

func (c *catalogCache) rebuild(ctx context.Context) (*catalogSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent miss may have rebuilt while this caller waited.
	if snap := c.snapshot.Load(); snap != nil && snap.version == c.store.Version() {
		return snap, nil
	}

	// The version is read before the data: a mutation landing mid-load
	// stamps the snapshot stale instead of silently current.
	version := c.store.Version()
	pizzas, err := c.store.LoadPizzas(ctx)
	if err != nil {
		return nil, err
	}
	toppings, err := c.store.LoadToppings(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := c.store.LoadCategories(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := c.store.LoadLocations(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := c.store.LoadOffers(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := c.store.ToppingOrderCounts(ctx)
	if err != nil {
		return nil, err
	}

	snap := newCatalogSnapshot(version, pizzas, toppings, categories, locations, offers, counts)
	c.snapshot.Store(snap)

	log.WithFields(logrus.Fields{
		"version":    snap.version,
		"pizzas":     len(snap.pizzas),
		"toppings":   len(snap.toppings),
		"categories": len(snap.categories),
		"locations":  len(snap.locations),
		"offers":     len(snap.offers),
	}).Debug("Catalog snapshot rebuilt")

	return snap, nil
}

func newCatalogSnapshot(version int64, pizzas []models.Pizza, toppings []models.Topping,
	categories []models.ToppingCategory, locations []models.StoreLocation,
	offers []models.Offer, toppingCounts map[string]int64) *catalogSnapshot {

	sort.Slice(pizzas, func(i, j int) bool {
		if pizzas[i].PopularityScore != pizzas[j].PopularityScore {
			return pizzas[i].PopularityScore > pizzas[j].PopularityScore
		}
		return pizzas[i].Name < pizzas[j].Name
	})

	categoryNames := make(map[string]string, len(categories))
	for _, cat := range categories {
		categoryNames[cat.ID] = cat.Name
	}
	for i := range toppings {
		if toppings[i].CategoryID != nil {
			toppings[i].CategoryName = categoryNames[*toppings[i].CategoryID]
		}
	}
	sort.Slice(toppings, func(i, j int) bool {
		if toppings[i].CategoryName != toppings[j].CategoryName {
			return toppings[i].CategoryName < toppings[j].CategoryName
		}
		return toppings[i].Name < toppings[j].Name
	})

	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].City != locations[j].City {
			return locations[i].City < locations[j].City
		}
		return locations[i].Name < locations[j].Name
	})

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].DiscountValue != offers[j].DiscountValue {
			return offers[i].DiscountValue > offers[j].DiscountValue
		}
		return offers[i].Title < offers[j].Title
	})

	snap := &catalogSnapshot{
		version:       version,
		builtAt:       time.Now().UTC(),
		pizzas:        pizzas,
		toppings:      toppings,
		categories:    categories,
		locations:     locations,
		offers:        offers,
		pizzasByID:    make(map[string]*models.Pizza, len(pizzas)),
		toppingsByID:  make(map[string]*models.Topping, len(toppings)),
		toppingCounts: toppingCounts,
	}
	for i := range pizzas {
		snap.pizzasByID[pizzas[i].ID] = &pizzas[i]
	}
	for i := range toppings {
		snap.toppingsByID[toppings[i].ID] = &toppings[i]
	}
	return snap
}

// ListPizzas returns available pizzas ranked by popularity.
func (c *catalogCache) ListPizzas(ctx context.Context) ([]models.Pizza, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Pizza, 0, len(snap.pizzas))
	for _, p := range snap.pizzas {
		if p.IsAvailable {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPizza resolves a pizza by ID regardless of availability, so existing
// orders and direct lookups keep working for menu items taken offline.
func (c *catalogCache) GetPizza(ctx context.Context, id string) (*models.Pizza, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	pizza, ok := snap.PizzaByID(id)
	if !ok {
		return nil, models.NewNotFoundError("Pizza", id)
	}
	return pizza, nil
}

// ListToppings returns available toppings, optionally filtered by category
// name (case-insensitive).
func (c *catalogCache) ListToppings(ctx context.Context, category string) ([]models.Topping, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Topping, 0, len(snap.toppings))
	for _, t := range snap.toppings {
		if !t.IsAvailable {
			continue
		}
		if category != "" && !strings.EqualFold(t.CategoryName, category) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *catalogCache) GetTopping(ctx context.Context, id string) (*models.Topping, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	topping, ok := snap.ToppingByID(id)
	if !ok {
		return nil, models.NewNotFoundError("Topping", id)
	}
	return topping, nil
}

func (c *catalogCache) ListCategories(ctx context.Context) ([]models.ToppingCategory, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.categories, nil
}

// PopularToppings ranks available toppings by how many order lines
// included them. Toppings never ordered are omitted; with no orders at all
// the result is empty.
func (c *catalogCache) PopularToppings(ctx context.Context, limit int) ([]models.ToppingPopularity, error) {
	if limit <= 0 {
		limit = 10
	}
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	ranked := make([]models.ToppingPopularity, 0, len(snap.toppings))
	for _, t := range snap.toppings {
		count := snap.toppingCounts[t.ID]
		if !t.IsAvailable || count == 0 {
			continue
		}
		ranked = append(ranked, models.ToppingPopularity{
			ID:           t.ID,
			Name:         t.Name,
			Price:        t.Price,
			CategoryName: t.CategoryName,
			OrderCount:   count,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].OrderCount != ranked[j].OrderCount {
			return ranked[i].OrderCount > ranked[j].OrderCount
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ListLocations returns active locations, optionally filtered by a
// case-insensitive city substring.
func (c *catalogCache) ListLocations(ctx context.Context, city string) ([]models.StoreLocation, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(city)
	out := make([]models.StoreLocation, 0, len(snap.locations))
	for _, loc := range snap.locations {
		if !loc.IsActive {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(loc.City), needle) {
			continue
		}
		out = append(out, loc)
	}
	if needle != "" {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	return out, nil
}

// ActiveOffers returns offers live right now, best discount first. With a
// location filter, global offers are included alongside that location's
// own; without one, every live offer is returned.
func (c *catalogCache) ActiveOffers(ctx context.Context, locationID string) ([]models.Offer, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]models.Offer, 0, len(snap.offers))
	for _, offer := range snap.offers {
		if !offer.ActiveAt(now) {
			continue
		}
		if locationID != "" && offer.LocationID != nil && *offer.LocationID != locationID {
			continue
		}
		out = append(out, offer)
	}
	return out, nil
}

func (c *catalogCache) View(ctx context.Context) (CatalogView, error) {
	return c.current(ctx)
}

func (c *catalogCache) Invalidate() {
	c.snapshot.Store(nil)
	log.Debug("Catalog snapshot invalidated")
}

func (c *catalogCache) Warm(ctx context.Context) (*CatalogSummary, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	summary := &CatalogSummary{CategoriesCount: len(snap.categories)}
	for _, p := range snap.pizzas {
		if p.IsAvailable {
			summary.PizzasCount++
		}
	}
	for _, t := range snap.toppings {
		if t.IsAvailable {
			summary.ToppingsCount++
		}
	}
	for _, o := range snap.offers {
		if o.ActiveAt(now) {
			summary.ActiveOffersCount++
		}
	}
	for _, l := range snap.locations {
		if l.IsActive {
			summary.LocationsCount++
		}
	}
	return summary, nil
}

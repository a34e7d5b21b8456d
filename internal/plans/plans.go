package plans

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BatmanBruc/bat-bot-leecher/types"
)

// Catalog is the read-only plan table supplied at startup.
type Catalog struct {
	byKey map[string]types.Plan
	order []string
}

var defaults = []types.Plan{
	{Key: "2h", Hours: 2, Price: 5, Name: "⚡ Quick Access", Description: "Perfect for urgent downloads"},
	{Key: "6h", Hours: 6, Price: 10, Name: "📱 Standard Access", Description: "Great for regular use"},
	{Key: "12h", Hours: 12, Price: 15, Name: "🔥 Extended Access", Description: "Best value for heavy users"},
	{Key: "24h", Hours: 24, Price: 20, Name: "👑 Full Day Access", Description: "Maximum convenience"},
}

func Default() *Catalog {
	c, _ := New(defaults...)
	return c
}

func New(list ...types.Plan) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]types.Plan, len(list))}
	for _, p := range list {
		p.Key = normalizeKey(p.Key)
		if p.Key == "" {
			return nil, fmt.Errorf("plan: empty key")
		}
		if p.Hours <= 0 || p.Price <= 0 {
			return nil, fmt.Errorf("plan %q: hours and price must be positive", p.Key)
		}
		if _, dup := c.byKey[p.Key]; dup {
			return nil, fmt.Errorf("plan %q: duplicate key", p.Key)
		}
		if strings.TrimSpace(p.Name) == "" {
			p.Name = p.Key
		}
		c.byKey[p.Key] = p
		c.order = append(c.order, p.Key)
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.byKey[c.order[i]].Hours < c.byKey[c.order[j]].Hours
	})
	return c, nil
}

// Parse reads "key:hours:price[:name];..." entries. An empty string yields the defaults.
func Parse(raw string) (*Catalog, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Default(), nil
	}
	var list []types.Plan
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("plan entry %q: want key:hours:price[:name]", entry)
		}
		hours, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("plan entry %q: hours: %w", entry, err)
		}
		price, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("plan entry %q: price: %w", entry, err)
		}
		p := types.Plan{Key: parts[0], Hours: hours, Price: price}
		if len(parts) == 4 {
			p.Name = strings.TrimSpace(parts[3])
		}
		list = append(list, p)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}
	return New(list...)
}

func (c *Catalog) Get(key string) (types.Plan, bool) {
	p, ok := c.byKey[normalizeKey(key)]
	return p, ok
}

// List returns plans ordered by duration.
func (c *Catalog) List() []types.Plan {
	out := make([]types.Plan, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.byKey[k])
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

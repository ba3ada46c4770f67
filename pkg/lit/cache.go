package lit

import "sync"

// TemplateCache memoizes parsed templates by call site. Entries are never
// evicted: the number of call sites is bounded by the program source.
type TemplateCache struct {
	mu        sync.RWMutex
	templates map[*Strings]*Template
}

// DefaultCache is the process-wide cache used by renderers that are not
// given one.
var DefaultCache = NewTemplateCache()

// NewTemplateCache returns an empty cache.
func NewTemplateCache() *TemplateCache {
	return &TemplateCache{templates: make(map[*Strings]*Template)}
}

// Get returns the Template for strs, parsing it on first use. Parse
// failures are not stored, so every caller sees the error.
func (c *TemplateCache) Get(strs *Strings) (*Template, error) {
	c.mu.RLock()
	t, ok := c.templates[strs]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.templates[strs]; ok {
		return t, nil
	}
	t, err := parseTemplate(strs)
	if err != nil {
		return nil, err
	}
	c.templates[strs] = t
	return t, nil
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

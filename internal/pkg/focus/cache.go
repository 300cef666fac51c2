package focus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/gethiox/midizap/internal/pkg/translation"
	"go.uber.org/zap"
)

// Cache remembers the section of the last focused window. The resolver is
// asked again at most once per Refresh, the section is matched again only
// when the window changes.
type Cache struct {
	resolver Resolver
	now      func() time.Time

	mu      sync.Mutex
	refresh time.Duration
	debug   bool

	valid   bool
	checked time.Time
	window  Window
	set     *translation.Set
	section *translation.Translation
}

func NewCache(resolver Resolver, refresh time.Duration) *Cache {
	return &Cache{resolver: resolver, refresh: refresh, now: time.Now}
}

func (c *Cache) SetRefresh(refresh time.Duration) {
	c.mu.Lock()
	c.refresh = refresh
	c.mu.Unlock()
}

// SetDebug enables logging every section change.
func (c *Cache) SetDebug(debug bool) {
	c.mu.Lock()
	c.debug = debug
	c.mu.Unlock()
}

// Active returns the regular section matching the focused window, nil when
// none matches or the window can't be determined.
func (c *Cache) Active(ctx context.Context, set *translation.Set) *translation.Translation {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.valid && c.set == set && now.Sub(c.checked) < c.refresh {
		return c.section
	}
	c.checked = now

	w, err := c.resolver.Focused(ctx)
	if err != nil {
		if c.debug {
			log.Info(fmt.Sprintf("failed to get focused window: %s", err), logger.Regex)
		}
		c.valid = false
		c.section = nil
		return nil
	}
	if c.valid && c.set == set && w.ID == c.window.ID {
		return c.section
	}

	c.valid, c.set, c.window = true, set, w
	c.section = set.Match(w.Title, w.Class)
	if c.debug {
		if c.section != nil {
			log.Info(fmt.Sprintf("translation: %s for %s", c.section.Name, w), logger.Regex,
				zap.String("section", c.section.Name))
		} else {
			log.Info(fmt.Sprintf("no translation found for %s", w), logger.Regex)
		}
	}
	return c.section
}

// Current returns the last focused window and the name of its section,
// empty when no section matched.
func (c *Cache) Current() (Window, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.section == nil {
		return c.window, ""
	}
	return c.window, c.section.Name
}

// Reset forgets the cached window, the next Active call matches again.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.valid = false
	c.set = nil
	c.section = nil
	c.mu.Unlock()
}

// Package roster resolves players and the goalie defending each side.
package roster

import (
	"sort"
	"sync"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// Lookup is the roster query boundary to the host.
type Lookup interface {
	// Player returns the player with the given id.
	Player(id core.PlayerID) (core.Player, bool)
	// Goalie returns the goalie currently defending the goal of team.
	Goalie(team core.Team) (core.Player, bool)
}

// Cache is a Lookup kept up to date from host player events.
type Cache struct {
	mu      sync.RWMutex
	players map[core.PlayerID]core.Player
}

// NewCache creates an empty roster cache.
func NewCache() *Cache {
	return &Cache{
		players: make(map[core.PlayerID]core.Player),
	}
}

// Upsert adds or replaces a player.
func (c *Cache) Upsert(p core.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[p.ID] = p
}

// Remove drops a player that left the server.
func (c *Cache) Remove(id core.PlayerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.players, id)
}

// Reset clears all players.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players = make(map[core.PlayerID]core.Player)
}

// Len returns the number of known players.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.players)
}

// Player implements Lookup.
func (c *Cache) Player(id core.PlayerID) (core.Player, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.players[id]
	return p, ok
}

// Goalie implements Lookup. Goalies without a username are skipped; if the
// host reports more than one goalie for a team the lowest id wins.
func (c *Cache) Goalie(team core.Team) (core.Player, bool) {
	if team == core.TeamNone {
		return core.Player{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]core.PlayerID, 0, 1)
	for id, p := range c.players {
		if p.Role == core.RoleGoalie && p.Team == team && p.Username != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return core.Player{}, false
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return c.players[ids[0]], true
}

// GoalieOf converts a roster player to the goalie identity stored on a shot.
func GoalieOf(p core.Player) *core.Goalie {
	return &core.Goalie{Name: p.Username, Hand: p.Hand}
}

// Package team defines the persistent teammate roster record.
package team

// Status is the lifecycle state of a teammate thread.
type Status string

const (
	StatusWorking  Status = "working"
	StatusIdle     Status = "idle"
	StatusShutdown Status = "shutdown"
)

// Member is one roster entry, per spec §3 "Teammate record".
type Member struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status Status `json:"status"`
}

// Config is the `team/config.json` document.
type Config struct {
	TeamName string    `json:"team_name"`
	Members  []*Member `json:"members"`
}

// Find returns the member with the given name, or nil.
func (c *Config) Find(name string) *Member {
	for _, m := range c.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Names returns every member's name, in roster order.
func (c *Config) Names() []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Name
	}
	return out
}

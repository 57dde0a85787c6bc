package config

// ScannerConfig selects which report adapters run
type ScannerConfig struct {
	Enabled  []string `yaml:"enabled"`
	Disabled []string `yaml:"disabled"`
}

// IsEnabled checks if a scanner is explicitly enabled
func (c *ScannerConfig) IsEnabled(name string) bool {
	for _, enabled := range c.Enabled {
		if enabled == name {
			return true
		}
	}
	return false
}

// IsDisabled checks if a scanner is explicitly disabled
func (c *ScannerConfig) IsDisabled(name string) bool {
	for _, disabled := range c.Disabled {
		if disabled == name {
			return true
		}
	}
	return false
}

// Allows reports whether a scanner may run. Disabled wins over enabled; an
// empty enabled list allows every scanner that is not disabled.
func (c *ScannerConfig) Allows(name string) bool {
	if c == nil {
		return true
	}
	if c.IsDisabled(name) {
		return false
	}
	return len(c.Enabled) == 0 || c.IsEnabled(name)
}

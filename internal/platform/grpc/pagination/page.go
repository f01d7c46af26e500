// Package pagination normalizes client-supplied page sizes.
package pagination

// PageSizeConfig sets the default and ceiling for page sizes.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize resolves a requested page size against the config: zero or
// negative values take the default, values above Max are capped, and the
// result is always at least one.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	size := int(value)
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 && size > cfg.Max {
		size = cfg.Max
	}
	if size < 1 {
		size = 1
	}
	return size
}

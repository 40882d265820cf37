package registry

// Source is one configured feed. Sources are loaded once and never mutated.
type Source struct {
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	Category string `yaml:"-" json:"category"`
	Priority int    `yaml:"priority" json:"priority"`
}

type Registry interface {
	ListSources() []Source
}

// document is the on-disk shape of one category file.
type document struct {
	Feeds []Source `yaml:"feeds"`
}

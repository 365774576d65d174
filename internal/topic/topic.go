// Package topic is the catalog of rankable topics. The item order of each
// topic is its true ranking; rooms reveal the items in a shuffled order.
package topic

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed topics.yaml
var topicsYAML []byte

type Topic struct {
	ID    string   `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Items []string `yaml:"items" json:"items"`
}

type Catalog struct {
	topics []Topic
	byID   map[string]Topic
}

func Load() (*Catalog, error) {
	var doc struct {
		Topics []Topic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(topicsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse topic catalog: %w", err)
	}
	c := &Catalog{topics: doc.Topics, byID: make(map[string]Topic, len(doc.Topics))}
	for _, t := range doc.Topics {
		if t.ID == "" || len(t.Items) == 0 {
			return nil, fmt.Errorf("topic %q: missing id or items", t.Name)
		}
		c.byID[t.ID] = t
	}
	return c, nil
}

// NewCatalog builds a catalog from explicit topics; used where the embedded
// catalog is not wanted.
func NewCatalog(topics []Topic) *Catalog {
	c := &Catalog{topics: topics, byID: make(map[string]Topic, len(topics))}
	for _, t := range topics {
		c.byID[t.ID] = t
	}
	return c
}

func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Get(id string) (Topic, bool) {
	t, ok := c.byID[id]
	return t, ok
}

func (c *Catalog) List() []Topic {
	return c.topics
}

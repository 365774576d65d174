package topic

import "testing"

func TestLoadEmbeddedCatalog(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	topics := c.List()
	if len(topics) == 0 {
		t.Fatalf("embedded catalog is empty")
	}

	seen := make(map[string]bool)
	for _, topic := range topics {
		if topic.ID == "" || topic.Name == "" {
			t.Errorf("topic %+v missing id or name", topic)
		}
		if seen[topic.ID] {
			t.Errorf("duplicate topic id %q", topic.ID)
		}
		seen[topic.ID] = true

		if len(topic.Items) != 10 {
			t.Errorf("topic %q has %d items, want 10", topic.ID, len(topic.Items))
		}
		items := make(map[string]bool)
		for _, item := range topic.Items {
			if item == "" {
				t.Errorf("topic %q has an empty item", topic.ID)
			}
			if items[item] {
				t.Errorf("topic %q repeats item %q", topic.ID, item)
			}
			items[item] = true
		}
	}
}

func TestCatalogGet(t *testing.T) {
	c := MustLoad()

	got, ok := c.Get("fast-food")
	if !ok {
		t.Fatalf("fast-food missing from catalog")
	}
	if got.Name == "" || len(got.Items) == 0 {
		t.Fatalf("fast-food entry incomplete: %+v", got)
	}

	if _, ok := c.Get("no-such-topic"); ok {
		t.Fatalf("lookup of unknown id must fail")
	}
}

func TestNewCatalog(t *testing.T) {
	c := NewCatalog([]Topic{{ID: "x", Name: "X", Items: []string{"a", "b"}}})
	if got := len(c.List()); got != 1 {
		t.Fatalf("len = %d", got)
	}
	topic, ok := c.Get("x")
	if !ok || topic.Name != "X" {
		t.Fatalf("get x = %+v, %v", topic, ok)
	}
}

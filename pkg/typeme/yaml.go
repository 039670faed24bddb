package typeme

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Category is the serialisable form of a taxonomy node.
//
//	name: phoneme
//	children:
//	  - name: vowels
//	    children:
//	      - name: front
//	        children: [{name: IY}, {name: IH}]
type Category struct {
	Name     string      `yaml:"name" json:"name"`
	Children []*Category `yaml:"children,omitempty" json:"children,omitempty"`
}

// FromCategory builds a Tree from a Category.
func FromCategory(s *Category) (*Tree, error) {
	if s == nil || s.Name == "" {
		return nil, fmt.Errorf("typeme: taxonomy root must have a name")
	}
	t := New(s.Name)
	if err := t.declareCategories(t.Root(), s.Children); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) declareCategories(parent ID, children []*Category) error {
	for _, c := range children {
		if c == nil || c.Name == "" {
			return fmt.Errorf("typeme: unnamed node under %q", t.Name(parent))
		}
		ids, err := t.Declare(parent, c.Name)
		if err != nil {
			return err
		}
		if err := t.declareCategories(ids[0], c.Children); err != nil {
			return err
		}
	}
	return nil
}

// ToCategory converts the tree back into its serialisable form.
func (t *Tree) ToCategory() *Category {
	return t.category(t.Root())
}

func (t *Tree) category(id ID) *Category {
	s := &Category{Name: t.nodes[id].name}
	for _, c := range t.nodes[id].children {
		s.Children = append(s.Children, t.category(c))
	}
	return s
}

// ParseYAML builds a Tree from a YAML taxonomy document.
func ParseYAML(data []byte) (*Tree, error) {
	var s Category
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("typeme: parse taxonomy: %w", err)
	}
	return FromCategory(&s)
}

// LoadFile reads a YAML taxonomy file.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("typeme: read taxonomy: %w", err)
	}
	return ParseYAML(data)
}

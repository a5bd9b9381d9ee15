package idgen

import (
	"regexp"
	"testing"
)

func TestNewID_Format(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"по умолчанию", 0, DefaultLength},
		{"отрицательная длина", -5, DefaultLength},
		{"21", 21, 21},
		{"64", 64, 64},
	}

	alnum := regexp.MustCompile(`^[A-Za-z0-9]+$`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.length)
			id, err := g.NewID()
			if err != nil {
				t.Fatalf("NewID: %v", err)
			}
			if len(id) != tt.want {
				t.Errorf("len(id) = %d, ожидали %d", len(id), tt.want)
			}
			if !alnum.MatchString(id) {
				t.Errorf("id %q содержит недопустимые символы", id)
			}
		})
	}
}

// TestNewID_Unique проверяет отсутствие коллизий на большой выборке.
func TestNewID_Unique(t *testing.T) {
	g := New(DefaultLength)
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := g.NewID()
		if err != nil {
			t.Fatalf("NewID: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("коллизия идентификатора %q на шаге %d", id, i)
		}
		seen[id] = struct{}{}
	}
}

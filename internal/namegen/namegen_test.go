package namegen

import (
	"regexp"
	"sync"
	"testing"
)

func TestName(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Za-z]+$`)
	g := New()
	seen := map[string]bool{}

	for i := 0; i < 500; i++ {
		name := g.Name()
		if !valid.MatchString(name) {
			t.Fatalf("имя %q не соответствует формату", name)
		}
		seen[name] = true
	}
	if len(seen) < 10 {
		t.Errorf("слишком мало различных имён: %d", len(seen))
	}
}

func TestName_Concurrent(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if g.Name() == "" {
					t.Error("пустое имя")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestIsLatin(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Alice", true},
		{"bob", true},
		{"", false},
		{"Mary Ann", false},
		{"O'Neil", false},
		{"Zoë", false},
	}
	for _, tt := range tests {
		if got := isLatin(tt.in); got != tt.want {
			t.Errorf("isLatin(%q) = %v, ожидали %v", tt.in, got, tt.want)
		}
	}
}

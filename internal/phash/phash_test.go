package phash

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"regexp"
	"testing"
)

// gradient строит горизонтальный градиент; reverse — справа налево.
func gradient(w, h int, reverse bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		v := uint8(x * 255 / (w - 1))
		if reverse {
			v = 255 - v
		}
		for y := 0; y < h; y++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

var hexFingerprint = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestHash_Deterministic(t *testing.T) {
	data := encodePNG(t, gradient(90, 80, false))

	a, err := Hash(data)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(data)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a != b {
		t.Errorf("Hash не детерминирован: %q != %q", a, b)
	}
	if !hexFingerprint.MatchString(a) {
		t.Errorf("отпечаток %q не 16 hex-символов", a)
	}
}

// TestHash_ScaledCopy проверяет, что масштабированная копия даёт тот же отпечаток.
func TestHash_ScaledCopy(t *testing.T) {
	small, err := Hash(encodePNG(t, gradient(90, 80, false)))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	large, err := Hash(encodePNG(t, gradient(360, 320, false)))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if small != large {
		d, _ := Distance(small, large)
		t.Errorf("отпечатки масштабированных копий различаются: %s / %s (distance %d)", small, large, d)
	}
}

func TestHash_DifferentImages(t *testing.T) {
	a, err := Hash(encodePNG(t, gradient(90, 80, false)))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(encodePNG(t, gradient(90, 80, true)))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatalf("противоположные градиенты дали одинаковый отпечаток %s", a)
	}
	d, err := Distance(a, b)
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if d < 32 {
		t.Errorf("Distance = %d, ожидали большое расстояние", d)
	}
}

func TestHash_GIF(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, gradient(90, 80, false), nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	if _, err := Hash(buf.Bytes()); err != nil {
		t.Errorf("Hash(GIF): %v", err)
	}
}

func TestHash_DecodeError(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"пусто", nil},
		{"текст", []byte("definitely not an image")},
		{"обрезанный PNG", encodePNG(t, gradient(90, 80, false))[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Hash(tt.data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Hash() = %v, ожидали ErrDecode", err)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b    string
		want    int
		wantErr bool
	}{
		{"0000000000000000", "0000000000000000", 0, false},
		{"0000000000000000", "000000000000000f", 4, false},
		{"ffffffffffffffff", "0000000000000000", 64, false},
		{"zz", "0000000000000000", 0, true},
		{"000000000000000g", "0000000000000000", 0, true},
	}

	for _, tt := range tests {
		got, err := Distance(tt.a, tt.b)
		if (err != nil) != tt.wantErr {
			t.Errorf("Distance(%s, %s) err = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Distance(%s, %s) = %d, ожидали %d", tt.a, tt.b, got, tt.want)
		}
	}
}

package transform

import (
	"bytes"
	"context"
	"strings"
	"testing"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// --- Item tests ---

func TestItem_Numeric(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"double", 4, 8},
		{"square", 3, 9},
		{"negate", 5, -5},
		{"increment", 2.5, 3.5},
	}
	for _, tt := range tests {
		fn, err := Item(tt.name)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got, err := fn(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestItem_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"uppercase", "abc", "ABC"},
		{"lowercase", "ABC", "abc"},
		{"reverse", "héllo", "olléh"},
		{"trim", "  x \n", "x"},
	}
	for _, tt := range tests {
		fn, err := Item(tt.name)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got, err := fn(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s(%q) = %v, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestItem_Stringify(t *testing.T) {
	fn, err := Item("stringify")
	if err != nil {
		t.Fatal(err)
	}
	got, err := fn(context.Background(), float64(42))
	if err != nil {
		t.Fatal(err)
	}
	if got != "42" {
		t.Errorf("stringify(42) = %v, want %q", got, "42")
	}
}

func TestItem_Length(t *testing.T) {
	fn, err := Item("length")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := fn(context.Background(), "日本語"); got != float64(3) {
		t.Errorf("length of 3 runes = %v, want 3", got)
	}
	if got, _ := fn(context.Background(), []any{1, 2}); got != float64(2) {
		t.Errorf("length of 2-element list = %v, want 2", got)
	}
	if _, err := fn(context.Background(), true); err == nil {
		t.Error("length of a bool should fail")
	}
}

func TestItem_TypeMismatch(t *testing.T) {
	fn, err := Item("double")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fn(context.Background(), "abc"); err == nil {
		t.Error("double of a string should fail")
	}
}

func TestItem_Unknown(t *testing.T) {
	_, err := Item("frobnicate")
	if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidArgument {
		t.Fatalf("code = %s, want INVALID_ARGUMENT", apperrors.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "double") {
		t.Errorf("error should list the valid names, got %v", err)
	}
}

// --- Filter tests ---

func TestFilter_Table(t *testing.T) {
	tests := []struct {
		name string
		item any
		want bool
	}{
		{"even", float64(4), true},
		{"even", float64(5), false},
		{"even", 4.5, false},
		{"odd", float64(-3), true},
		{"odd", float64(4), false},
		{"positive", float64(1), true},
		{"positive", float64(-1), false},
		{"negative", float64(-2), true},
		{"negative", float64(0), false},
		{"nonEmpty", "x", true},
		{"nonEmpty", "", false},
		{"nonEmpty", nil, false},
		{"nonEmpty", []any{}, false},
		{"nonEmpty", float64(0), true},
		{"numeric", "12.5", true},
		{"numeric", "abc", false},
		{"numeric", float64(7), true},
		{"alpha", "héllo", true},
		{"alpha", "ab1", false},
		{"alpha", "", false},
		{"alpha", float64(1), false},
	}
	for _, tt := range tests {
		fn, err := Filter(tt.name)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got, err := fn(tt.item)
		if err != nil {
			t.Fatalf("%s(%v): %v", tt.name, tt.item, err)
		}
		if got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.item, got, tt.want)
		}
	}
}

func TestFilter_MinLength(t *testing.T) {
	fn, err := Filter("minLength:3")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := fn("abc"); !got {
		t.Error("minLength:3 should keep a 3-char string")
	}
	if got, _ := fn("ab"); got {
		t.Error("minLength:3 should drop a 2-char string")
	}
	if got, _ := fn("日本語"); !got {
		t.Error("minLength counts runes, not bytes")
	}
	if got, _ := fn(float64(12345)); got {
		t.Error("minLength should drop non-strings")
	}
}

func TestFilter_MinLengthBadArgument(t *testing.T) {
	for _, name := range []string{"minLength:x", "minLength:-1", "minLength:"} {
		_, err := Filter(name)
		if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidArgument {
			t.Errorf("%s: code = %s, want INVALID_ARGUMENT", name, apperrors.CodeOf(err))
		}
	}
}

func TestFilter_Unknown(t *testing.T) {
	_, err := Filter("shiny")
	if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", apperrors.CodeOf(err))
	}
}

// --- Reducer tests ---

func runReducer(t *testing.T, name string, items []any) any {
	t.Helper()
	r, err := NewReducer(name)
	if err != nil {
		t.Fatal(err)
	}
	acc := r.Init()
	for _, item := range items {
		acc, err = r.Fold(acc, item)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	return r.Finish(acc)
}

func TestReducer_Table(t *testing.T) {
	nums := []any{float64(1), float64(2), float64(3)}
	tests := []struct {
		name  string
		items []any
		want  any
	}{
		{"sum", nums, float64(6)},
		{"product", []any{float64(2), float64(3), float64(4)}, float64(24)},
		{"min", []any{float64(3), float64(1), float64(2)}, float64(1)},
		{"max", []any{float64(3), float64(1), float64(2)}, float64(3)},
		{"count", []any{"a", "b", "c"}, float64(3)},
		{"concat", []any{"a", float64(1), "b"}, "a1b"},
		{"mean", []any{float64(2), float64(4), float64(6)}, float64(4)},
	}
	for _, tt := range tests {
		if got := runReducer(t, tt.name, tt.items); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestReducer_EmptyStream(t *testing.T) {
	if got := runReducer(t, "sum", nil); got != float64(0) {
		t.Errorf("sum of nothing = %v, want 0", got)
	}
	if got := runReducer(t, "min", nil); got != nil {
		t.Errorf("min of nothing = %v, want nil", got)
	}
	if got := runReducer(t, "mean", nil); got != nil {
		t.Errorf("mean of nothing = %v, want nil", got)
	}
}

func TestReducer_NonNumericItem(t *testing.T) {
	r, err := NewReducer("sum")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Fold(r.Init(), "oops"); err == nil {
		t.Error("summing a string should fail")
	}
}

func TestReducer_Unknown(t *testing.T) {
	_, err := NewReducer("median")
	if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", apperrors.CodeOf(err))
	}
}

// --- Byte transform tests ---

func TestByte_Case(t *testing.T) {
	up, err := Byte("uppercase", "")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := up([]byte("mixed Case"))
	if string(got) != "MIXED CASE" {
		t.Errorf("uppercase = %q", got)
	}
	down, err := Byte("lowercase", "")
	if err != nil {
		t.Fatal(err)
	}
	got, _ = down([]byte("MIXED Case"))
	if string(got) != "mixed case" {
		t.Errorf("lowercase = %q", got)
	}
}

func TestByte_ChaCha20Roundtrip(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog, twice at least")

	encrypt, err := Byte("chacha20", "secret")
	if err != nil {
		t.Fatal(err)
	}
	// Encrypt in uneven chunks; the keystream must continue across calls.
	var cipher []byte
	for _, end := range []int{7, 20, len(plain)} {
		start := len(cipher)
		part, err := encrypt(plain[start:end])
		if err != nil {
			t.Fatal(err)
		}
		cipher = append(cipher, part...)
	}
	if bytes.Equal(cipher, plain) {
		t.Fatal("ciphertext equals plaintext")
	}

	decrypt, err := Byte("chacha20", "secret")
	if err != nil {
		t.Fatal(err)
	}
	got, err := decrypt(cipher)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("roundtrip = %q, want original", got)
	}
}

func TestByte_ChaCha20Deterministic(t *testing.T) {
	a, err := Byte("chacha20", "k1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Byte("chacha20", "k1")
	if err != nil {
		t.Fatal(err)
	}
	ca, _ := a([]byte("payload"))
	cb, _ := b([]byte("payload"))
	if !bytes.Equal(ca, cb) {
		t.Error("same key should produce the same keystream")
	}

	other, err := Byte("chacha20", "k2")
	if err != nil {
		t.Fatal(err)
	}
	cc, _ := other([]byte("payload"))
	if bytes.Equal(ca, cc) {
		t.Error("different keys should produce different keystreams")
	}
}

func TestByte_ChaCha20RequiresKey(t *testing.T) {
	_, err := Byte("chacha20", "")
	if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", apperrors.CodeOf(err))
	}
}

func TestByte_Unknown(t *testing.T) {
	_, err := Byte("rot13", "")
	if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", apperrors.CodeOf(err))
	}
}

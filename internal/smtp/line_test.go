package smtp

import "testing"

func TestLineBuffer(t *testing.T) {
	t.Run("WholeLine", func(t *testing.T) {
		var lb lineBuffer
		line, ok := lb.Push("250 ok\r\n")
		if !ok || line != "250 ok" {
			t.Fatalf("Push = (%q, %v), want (%q, true)", line, ok, "250 ok")
		}
		if lb.Len() != 0 {
			t.Errorf("buffer not reset after complete line")
		}
	})

	t.Run("Fragmented", func(t *testing.T) {
		var lb lineBuffer
		for _, frag := range []string{"2", "50 o", "k", "\r"} {
			if line, ok := lb.Push(frag); ok {
				t.Fatalf("Push(%q) completed early with %q", frag, line)
			}
		}
		line, ok := lb.Push("\n")
		if !ok || line != "250 ok" {
			t.Fatalf("final Push = (%q, %v), want (%q, true)", line, ok, "250 ok")
		}
	})

	t.Run("BareLFIsNotATerminator", func(t *testing.T) {
		var lb lineBuffer
		if _, ok := lb.Push("250 ok\n"); ok {
			t.Fatal("bare LF must not complete a line")
		}
	})

	t.Run("SequentialLines", func(t *testing.T) {
		var lb lineBuffer
		first, ok := lb.Push("220 ready\r\n")
		if !ok || first != "220 ready" {
			t.Fatalf("first line = (%q, %v)", first, ok)
		}
		second, ok := lb.Push("250 ok\r\n")
		if !ok || second != "250 ok" {
			t.Fatalf("second line = (%q, %v)", second, ok)
		}
	})
}

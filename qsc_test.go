package osc

import "testing"

func TestParseQSC(t *testing.T) {
	i1 := Int32(1)
	f1 := Float32(2.5)
	s1 := String("hi")
	b1 := Blob{0x0a, 0x0b, 0x0c}
	cases := []struct {
		in   string
		want Message
	}{
		{in: "/ping", want: Message{Pattern: "/ping"}},
		{in: "/x 1 2.5 'hi' \\T \\F \\N \\I", want: Message{
			Pattern: "/x",
			Arguments: []Argument{
				&i1, &f1, &s1, True{}, False{}, Null{}, Impulse{},
			},
		}},
		{in: "/blob #blob 0a0b0c", want: Message{
			Pattern:   "/blob",
			Arguments: []Argument{&b1},
		}},
	}
	for _, c := range cases {
		got, err := ParseQSC(c.in)
		if err != nil {
			t.Fatalf("ParseQSC(%q): %v", c.in, err)
		}
		if got.Pattern != c.want.Pattern {
			t.Errorf("ParseQSC(%q).Pattern = %q, want %q", c.in, got.Pattern, c.want.Pattern)
		}
		if len(got.Arguments) != len(c.want.Arguments) {
			t.Fatalf("ParseQSC(%q) = %d args, want %d", c.in, len(got.Arguments), len(c.want.Arguments))
		}
		for i := range got.Arguments {
			if got.Arguments[i].TypeTag() != c.want.Arguments[i].TypeTag() {
				t.Errorf("ParseQSC(%q) arg %d type tag = %c, want %c", c.in, i,
					got.Arguments[i].TypeTag(), c.want.Arguments[i].TypeTag())
			}
		}
	}
}

func TestQSCRoundTrip(t *testing.T) {
	i := Int32(7)
	f := Float32(1.5)
	s := String("hello")
	m := Message{
		Pattern:   "/foo/bar",
		Arguments: []Argument{&i, &f, &s},
	}
	rendered := m.QSC()
	got, err := ParseQSC(rendered)
	if err != nil {
		t.Fatalf("ParseQSC(%q): %v", rendered, err)
	}
	if got.Pattern != m.Pattern || len(got.Arguments) != len(m.Arguments) {
		t.Fatalf("round trip through QSC failed: %q -> %+v", s, got)
	}
}

package kubo

import (
	"fmt"
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/google/go-cmp/cmp"
	"github.com/ipfs/go-cid"
)

// testCID returns a valid CIDv1 (dag-pb, sha2-256) for data.
func testCID(t *testing.T, data string) string {
	t.Helper()
	c, err := cid.Prefix{Version: 1, Codec: cid.DagProtobuf, MhType: 0x12, MhLength: -1}.Sum([]byte(data))
	if err != nil {
		t.Fatalf("build cid: %v", err)
	}
	return c.String()
}

func TestParseKeys(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out := []byte(`{"Keys":[{"Name":"self","Id":"k51self"},{"Name":"profile","Id":"k51prof"}]}`)
		got, err := ParseKeys(out)
		if err != nil {
			t.Fatalf("ParseKeys() error: %v", err)
		}
		want := []Key{{Name: "self", ID: "k51self"}, {Name: "profile", ID: "k51prof"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseKeys() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("text fallback", func(t *testing.T) {
		got, err := ParseKeys([]byte("self\n\nprofile\n"))
		if err != nil {
			t.Fatalf("ParseKeys() error: %v", err)
		}
		want := []Key{{Name: "self"}, {Name: "profile"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseKeys() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestParsePins(t *testing.T) {
	a, b := testCID(t, "a"), testCID(t, "b")
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	t.Run("json sorted", func(t *testing.T) {
		out := fmt.Sprintf(`{"Keys":{%q:{"Type":"recursive"},%q:{"Type":"recursive"}}}`, second, first)
		got, err := ParsePins([]byte(out))
		if err != nil {
			t.Fatalf("ParsePins() error: %v", err)
		}
		if diff := cmp.Diff([]string{first, second}, got); diff != "" {
			t.Errorf("ParsePins() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("text keeps line order", func(t *testing.T) {
		out := b + " recursive\n" + a + " recursive\n"
		got, err := ParsePins([]byte(out))
		if err != nil {
			t.Fatalf("ParsePins() error: %v", err)
		}
		if diff := cmp.Diff([]string{b, a}, got); diff != "" {
			t.Errorf("ParsePins() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty json", func(t *testing.T) {
		got, err := ParsePins([]byte(`{"Keys":{}}`))
		if err != nil {
			t.Fatalf("ParsePins() error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ParsePins() = %v, want empty", got)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParsePins([]byte("not-a-cid recursive\n")); err == nil {
			t.Fatal("expected error for invalid cid")
		}
	})
}

func TestParseRoot(t *testing.T) {
	root := testCID(t, "tree")
	got, err := ParseRoot([]byte(root + "\n"))
	if err != nil {
		t.Fatalf("ParseRoot() error: %v", err)
	}
	if got != root {
		t.Errorf("ParseRoot() = %q, want %q", got, root)
	}

	if _, err := ParseRoot([]byte("  \n")); err == nil {
		t.Error("expected error for empty output")
	}
	if _, err := ParseRoot([]byte("Error: disk full")); err == nil {
		t.Error("expected error for non-cid output")
	}
}

func TestParsePublished(t *testing.T) {
	testCases := []struct {
		name string
		out  string
		want string
	}{
		{name: "json", out: `{"Name":"k51qzi5uqu5dl","Value":"/ipfs/bafy"}`, want: "k51qzi5uqu5dl"},
		{name: "json ipns path", out: `{"Name":"/ipns/k51qzi5uqu5dl","Value":"/ipfs/bafy"}`, want: "k51qzi5uqu5dl"},
		{name: "confirmation text", out: "Published name: /ipns/k51abc.../\n", want: "k51abc..."},
		{name: "kubo text", out: "Published to k51qzi5uqu5dl: /ipfs/bafy\n", want: "k51qzi5uqu5dl"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePublished([]byte(tc.out))
			if err != nil {
				t.Fatalf("ParsePublished() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParsePublished() = %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := ParsePublished([]byte("Published")); err == nil {
		t.Error("expected error for truncated confirmation")
	}
}

func TestParseVersion(t *testing.T) {
	if got := ParseVersion([]byte("ipfs version 0.29.0\n")); got != "0.29.0" {
		t.Errorf("ParseVersion() = %q, want 0.29.0", got)
	}
	if got := ParseVersion(nil); got != "" {
		t.Errorf("ParseVersion(nil) = %q, want empty", got)
	}
}

func TestMultiaddr(t *testing.T) {
	got, err := Multiaddr("127.0.0.1:8080")
	if err != nil {
		t.Fatalf("Multiaddr() error: %v", err)
	}
	if got != "/ip4/127.0.0.1/tcp/8080" {
		t.Errorf("Multiaddr() = %q", got)
	}

	got, err = Multiaddr("[::1]:5001")
	if err != nil {
		t.Fatalf("Multiaddr() error: %v", err)
	}
	if got != "/ip6/::1/tcp/5001" {
		t.Errorf("Multiaddr() = %q", got)
	}

	_, err = Multiaddr("localhost:5001")
	if err == nil {
		t.Fatal("expected error for hostname")
	}
	if !errdefs.IsInvalidArgument(err) {
		t.Errorf("error %v should be invalid argument", err)
	}
	if !strings.Contains(err.Error(), "localhost:5001") {
		t.Errorf("error %q should name the address", err.Error())
	}
}

package favorites

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

var testHashKey = []byte("0123456789abcdef0123456789abcdef")

func testCodec() *Codec {
	return NewCodec("favorites", testHashKey, 30*24*time.Hour, zap.NewNop())
}

// requestWithCookie builds a request carrying the cookie a prior Write produced.
func requestWithCookie(t *testing.T, c *Codec, collection []models.Favorite) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := c.Write(rec, collection); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	req := httptest.NewRequest("GET", "/favorites/get", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return req
}

// TestCodec_RoundTrip verifies encode-then-decode preserves entries and order.
func TestCodec_RoundTrip(t *testing.T) {
	c := testCodec()
	collection := []models.Favorite{
		{PlaceID: "p1", Name: "Home"},
		{PlaceID: "p2", Name: "Work"},
		{PlaceID: "p3", Name: "Gym"},
	}

	got := c.Decode(requestWithCookie(t, c, collection))
	if len(got) != 3 {
		t.Fatalf("Decode() returned %d entries, want 3", len(got))
	}
	for i, f := range collection {
		if got[i] != f {
			t.Errorf("Decode()[%d] = %+v, want %+v", i, got[i], f)
		}
	}
}

// TestCodec_Decode_NoCookie verifies the absent-cookie case yields an empty
// collection, not an error.
func TestCodec_Decode_NoCookie(t *testing.T) {
	c := testCodec()
	req := httptest.NewRequest("GET", "/favorites/get", nil)
	if got := c.Decode(req); len(got) != 0 {
		t.Errorf("Decode() = %+v, want empty collection", got)
	}
}

// TestCodec_Decode_Garbage verifies unparseable cookie values fail open.
func TestCodec_Decode_Garbage(t *testing.T) {
	c := testCodec()
	for _, value := range []string{"not-a-valid-cookie", "e30=", "[]"} {
		req := httptest.NewRequest("GET", "/favorites/get", nil)
		req.AddCookie(&http.Cookie{Name: "favorites", Value: value})
		if got := c.Decode(req); len(got) != 0 {
			t.Errorf("Decode(%q) = %+v, want empty collection", value, got)
		}
	}
}

// TestCodec_Decode_ForgedSignature verifies a cookie signed with a different
// key decodes to an empty collection.
func TestCodec_Decode_ForgedSignature(t *testing.T) {
	forger := NewCodec("favorites", []byte("ffffffffffffffffffffffffffffffff"), 30*24*time.Hour, zap.NewNop())
	req := requestWithCookie(t, forger, []models.Favorite{{PlaceID: "evil", Name: "Forged"}})

	c := testCodec()
	if got := c.Decode(req); len(got) != 0 {
		t.Errorf("Decode() of forged cookie = %+v, want empty collection", got)
	}
}

// TestCodec_Decode_DropsInvalidEntries verifies shape validation drops bad
// entries on load while keeping valid ones in order.
func TestCodec_Decode_DropsInvalidEntries(t *testing.T) {
	// Encode directly so invalid entries can be smuggled past Write.
	sc := securecookie.New(testHashKey, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	raw := []models.Favorite{
		{PlaceID: "p1", Name: "Home"},
		{PlaceID: "", Name: "No ID"},
		{PlaceID: "p2", Name: "  "},
		{PlaceID: "p3", Name: "Work"},
		{PlaceID: "p1", Name: "Duplicate"},
	}
	encoded, err := sc.Encode("favorites", raw)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	req := httptest.NewRequest("GET", "/favorites/get", nil)
	req.AddCookie(&http.Cookie{Name: "favorites", Value: encoded})

	c := testCodec()
	got := c.Decode(req)
	if len(got) != 2 {
		t.Fatalf("Decode() returned %d entries, want 2: %+v", len(got), got)
	}
	if got[0].PlaceID != "p1" || got[0].Name != "Home" {
		t.Errorf("Decode()[0] = %+v, want first p1 entry", got[0])
	}
	if got[1].PlaceID != "p3" {
		t.Errorf("Decode()[1] = %+v, want p3", got[1])
	}
}

// TestCodec_Write_CookieAttributes verifies the security attributes and max-age.
func TestCodec_Write_CookieAttributes(t *testing.T) {
	c := testCodec()
	rec := httptest.NewRecorder()
	if err := c.Write(rec, []models.Favorite{{PlaceID: "p1", Name: "Home"}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Write() set %d cookies, want 1", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != "favorites" {
		t.Errorf("cookie.Name = %q, want favorites", cookie.Name)
	}
	if !cookie.HttpOnly {
		t.Error("cookie.HttpOnly = false, want true")
	}
	if !cookie.Secure {
		t.Error("cookie.Secure = false, want true")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie.SameSite = %v, want Strict", cookie.SameSite)
	}
	if want := int((30 * 24 * time.Hour).Seconds()); cookie.MaxAge != want {
		t.Errorf("cookie.MaxAge = %d, want %d", cookie.MaxAge, want)
	}
	if strings.Contains(cookie.Value, "place_id") {
		t.Error("cookie value is plaintext JSON, want encoded")
	}
}

// TestCodec_Clear verifies clearing writes an expired empty cookie.
func TestCodec_Clear(t *testing.T) {
	c := testCodec()
	rec := httptest.NewRecorder()
	c.Clear(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Clear() set %d cookies, want 1", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Value != "" {
		t.Errorf("cookie.Value = %q, want empty", cookie.Value)
	}
	if cookie.MaxAge >= 0 {
		t.Errorf("cookie.MaxAge = %d, want immediate expiry", cookie.MaxAge)
	}
}

package validation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sampleLink struct {
	Title string `json:"title" validate:"required"`
	URL   string `json:"url" validate:"required,weburl"`
}

type samplePayload struct {
	Name     string       `json:"name" validate:"required,min=3,max=100"`
	Phone    string       `json:"phone" validate:"omitempty,phone"`
	DateTime string       `json:"dateTime" validate:"omitempty,isodate,future"`
	Capacity *int         `json:"capacity" validate:"omitempty,min=1,max=10000"`
	Privacy  string       `json:"privacy" validate:"omitempty,oneof=public private"`
	Links    []sampleLink `json:"links" validate:"omitempty,dive"`
}

func (p *samplePayload) ApplyDefaults() {
	if p.Privacy == "" {
		p.Privacy = "public"
	}
}

func (p *samplePayload) ValidationMessages() map[string]string {
	return map[string]string{
		"name.required": "Event name is required",
		"capacity.max":  "Capacity cannot exceed 10,000",
	}
}

func fixedGateway() *Gateway {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return New(WithClock(func() time.Time { return now }))
}

func intPtr(v int) *int { return &v }

func TestGatewayStruct_Valid(t *testing.T) {
	g := fixedGateway()
	p := &samplePayload{
		Name:     "Summer Fest",
		Phone:    "+1 555-123-4567",
		DateTime: "2025-07-01T18:00:00Z",
		Capacity: intPtr(200),
		Links:    []sampleLink{{Title: "Tickets", URL: "https://example.com/t"}},
	}

	require.NoError(t, g.Struct(p))
	require.Equal(t, "public", p.Privacy, "defaults applied before validation")
}

func TestGatewayStruct_AggregatesAllViolations(t *testing.T) {
	g := fixedGateway()
	p := &samplePayload{
		Phone:    "call me",
		DateTime: "2024-01-01T00:00:00Z",
		Capacity: intPtr(20000),
		Privacy:  "secret",
		Links:    []sampleLink{{Title: "", URL: "not a url"}},
	}

	err := g.Struct(p)
	require.Error(t, err)

	errs, ok := AsErrors(err)
	require.True(t, ok)

	got := map[string]string{}
	for _, fe := range errs {
		got[fe.Field] = fe.Message
	}
	require.Equal(t, "Event name is required", got["name"])
	require.Equal(t, "must be a valid phone number", got["phone"])
	require.Equal(t, "must be in the future", got["dateTime"])
	require.Equal(t, "Capacity cannot exceed 10,000", got["capacity"])
	require.Equal(t, "must be one of [public, private]", got["privacy"])
	require.Equal(t, "is required", got["links[0].title"])
	require.Equal(t, "must be a valid URI", got["links[0].url"])
	require.Len(t, errs, 7)

	// Order follows field declaration order.
	require.Equal(t, "name", errs[0].Field)
}

func TestGatewayStruct_BadDateFormat(t *testing.T) {
	g := fixedGateway()
	err := g.Struct(&samplePayload{Name: "abc", DateTime: "next tuesday"})

	errs, ok := AsErrors(err)
	require.True(t, ok)
	require.Equal(t, Errors{{Field: "dateTime", Message: "must be a valid ISO-8601 date"}}, errs)
}

func TestGatewayDecode(t *testing.T) {
	g := fixedGateway()

	t.Run("strips unknown fields", func(t *testing.T) {
		var p samplePayload
		err := g.Decode(strings.NewReader(`{"name":"Meetup","hacker":true}`), &p)
		require.NoError(t, err)
		require.Equal(t, "Meetup", p.Name)
	})

	t.Run("empty body", func(t *testing.T) {
		var p samplePayload
		err := g.Decode(strings.NewReader(""), &p)
		errs, ok := AsErrors(err)
		require.True(t, ok)
		require.Equal(t, "body", errs[0].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		var p samplePayload
		err := g.Decode(strings.NewReader(`{"name":`), &p)
		errs, ok := AsErrors(err)
		require.True(t, ok)
		require.Equal(t, "body", errs[0].Field)
	})

	t.Run("trailing data after the object", func(t *testing.T) {
		for _, body := range []string{
			`{"name":"Meetup"} trailing`,
			`{"name":"Meetup"}{"name":"Second"}`,
			`{"name":"Meetup"} {`,
		} {
			var p samplePayload
			err := g.Decode(strings.NewReader(body), &p)
			errs, ok := AsErrors(err)
			require.True(t, ok, "body %q should be rejected, got %v", body, err)
			require.Equal(t, Errors{{Field: "body", Message: "must be a valid JSON object"}}, errs)
		}
	})

	t.Run("trailing whitespace is accepted", func(t *testing.T) {
		var p samplePayload
		err := g.Decode(strings.NewReader("{\"name\":\"Meetup\"}\n\t "), &p)
		require.NoError(t, err)
		require.Equal(t, "Meetup", p.Name)
	})

	t.Run("wrong type", func(t *testing.T) {
		var p samplePayload
		err := g.Decode(strings.NewReader(`{"name":"ok name","capacity":"many"}`), &p)
		errs, ok := AsErrors(err)
		require.True(t, ok)
		require.Equal(t, "capacity", errs[0].Field)
	})

	t.Run("body too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := http.MaxBytesReader(rec, io.NopCloser(strings.NewReader(`{"name":"a long name"}`)), 4)
		var p samplePayload
		err := g.Decode(body, &p)
		errs, ok := AsErrors(err)
		require.True(t, ok)
		require.Equal(t, Errors{{Field: "body", Message: "request body exceeds 4 bytes"}}, errs)
	})
}

func TestGatewayVar(t *testing.T) {
	g := fixedGateway()

	require.NoError(t, g.Var("id", "9b2f0c4e-8d7a-4f1e-9a57-3f3b9c1d2e4f", "required,uuid"))

	err := g.Var("id", "nope", "required,uuid")
	errs, ok := AsErrors(err)
	require.True(t, ok)
	require.Equal(t, Errors{{Field: "id", Message: "must be a valid UUID"}}, errs)
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2025-07-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDateTime("2025-07-01T18:00:00+02:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 7, 1, 16, 0, 0, 0, time.UTC), got)

	_, err = ParseDateTime("")
	require.Error(t, err)
}

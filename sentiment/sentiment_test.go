package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateText(t *testing.T) {
	_, err := ValidateText("   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = ValidateText(" ab ")
	assert.ErrorIs(t, err, ErrTextTooShort)
	_, err = ValidateText("a b")
	assert.ErrorIs(t, err, ErrTextTooShort)

	text, err := ValidateText("  abc \n")
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	long := strings.Repeat("é", 120)
	p := Preview(long)
	assert.True(t, strings.HasSuffix(p, "..."))
	assert.Equal(t, strings.Repeat("é", 100)+"...", p)
}

func TestClientShortTextSendsNothing(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	for _, text := range []string{"", "hi", " a  "} {
		_, err := client.Analyze(context.Background(), text)
		assert.Error(t, err)
	}
	assert.Zero(t, calls.Load())
}

func TestClientAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req analyzeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "I love programming!", req.Text)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"sentiment": "Positive", "input_text": req.Text})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 0)
	assert.Equal(t, server.URL+"/analyze", client.Endpoint())
	result, err := client.Analyze(context.Background(), "  I love programming!  ")
	require.NoError(t, err)
	assert.Equal(t, Positive, result.Sentiment)
	assert.Equal(t, "I love programming!", result.InputText)
}

func TestClientNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Analyze(context.Background(), "this should fail")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
	assert.Equal(t, server.URL+"/analyze", terr.Endpoint)
	assert.Contains(t, terr.Error(), server.URL)
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, 0).Analyze(context.Background(), "anyone there?")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, terr.StatusCode)
}

func TestClientUnexpectedLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sentiment":"Neutral"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0).Analyze(context.Background(), "meh, whatever")
	var terr *TransportError
	assert.True(t, errors.As(err, &terr))
}

func TestLexiconAnalyzer(t *testing.T) {
	a := NewLexiconAnalyzer()
	cases := []struct {
		text string
		want Label
	}{
		{"I love this product! It's amazing.", Positive},
		{"This is terrible, I hate it", Negative},
		{"I don't like it", Negative},
		{"not bad at all", Positive},
		{"ＧＲＥＡＴ service", Positive},
		{"The package arrived on a Tuesday", Positive},
		{"Worst purchase ever, total waste", Negative},
	}
	for _, c := range cases {
		got, err := a.Analyze(context.Background(), c.text)
		require.NoError(t, err, c.text)
		assert.Equal(t, c.want, got.Sentiment, c.text)
	}
	_, err := a.Analyze(context.Background(), "ok")
	assert.ErrorIs(t, err, ErrTextTooShort)
}

type countingAnalyzer struct {
	calls atomic.Int32
	next  Analyzer
}

func (c *countingAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	c.calls.Add(1)
	return c.next.Analyze(ctx, text)
}

func TestCachedAnalyzer(t *testing.T) {
	inner := &countingAnalyzer{next: NewLexiconAnalyzer()}
	cached, err := NewCachedAnalyzer(inner, 8)
	require.NoError(t, err)

	first, err := cached.Analyze(context.Background(), "I love it")
	require.NoError(t, err)
	second, err := cached.Analyze(context.Background(), "  I LOVE IT ")
	require.NoError(t, err)

	assert.Equal(t, first.Sentiment, second.Sentiment)
	assert.Equal(t, "I LOVE IT", second.InputText)
	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, 1, cached.Len())

	_, err = cached.Analyze(context.Background(), "no")
	assert.Error(t, err)
	assert.EqualValues(t, 1, inner.calls.Load())

	cached.Purge()
	assert.Zero(t, cached.Len())
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("POSITIVE")
	require.NoError(t, err)
	assert.Equal(t, Positive, l)
	_, err = ParseLabel("")
	assert.Error(t, err)
}
